// Package config loads the plugind configuration file: the listen address,
// logging, the ordered list of plugin managers and the drivers backing the
// event bus and the load ledger. Relative paths are resolved against the
// directory of the configuration file.
package config
