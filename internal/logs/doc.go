// Package logs reads the daemon's log file for the CLI.
//
// Tail returns the last N lines with bounded memory and the offset to resume
// from; Follow streams lines appended after that offset until the context is
// cancelled, waking on fsnotify write events and truncating back to the start
// when the file is rotated in place.
package logs
