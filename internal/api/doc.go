// Package api exposes a read-only HTTP view of the plugin registry: loaded
// plugins and their hierarchy, module ownership, the plugins managers could
// still load, the load ledger and Prometheus metrics.
package api
