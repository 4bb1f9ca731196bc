// Package events publishes registry mutations to interested processes. The
// Emitter observer turns registrations and removals into Event messages and
// hands them to a Publisher backed by an in-process channel, a Redis pub/sub
// channel or a RabbitMQ queue.
package events
