// Package daemonrun hosts the long-running side of the supervisor: it
// validates configuration, claims the PID file and instance lock, and runs the
// directory watcher until it receives SIGINT or SIGTERM.
package daemonrun
