// Package daemonctl implements the CLI side of process supervision.
//
// The daemon is tracked through a PID file guarded by an exclusive
// <pidfile>.lock claim protocol. A recorded PID counts as running only when the
// process answers signal 0 and its command line looks like snapsense.
// Start re-executes the binary as `snapsense daemon` in a new session; Stop
// escalates from SIGTERM to SIGKILL.
package daemonctl
