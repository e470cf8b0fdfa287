// Package watcher turns a directory into a stream of intake candidates.
//
// Two producers feed one bounded queue: an fsnotify subscription that reports
// newly created files, and a reconciliation scan that lists the directory at
// start and then on a fixed interval. A single consumer hands each candidate
// to the intake pipeline, so naming work never blocks event delivery. Sweep
// runs one reconciliation pass in the foreground for the `scan` command.
package watcher
