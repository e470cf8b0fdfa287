// Command snapsense watches a screenshot directory and renames new screenshots
// to descriptive names suggested by a vision-capable language model.
//
// Usage:
//
//	snapsense start|stop|restart|status
//	snapsense scan
//	snapsense history [--limit N] [--clear]
//	snapsense config [show|init|validate|edit]
//
// All commands accept --config to point at a TOML configuration file; the
// default is ~/.config/snapsense/config.toml.
package main
