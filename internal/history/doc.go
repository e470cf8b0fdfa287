// Package history persists a journal of completed renames in SQLite.
//
// The journal is a write-mostly log sink: the intake pipeline appends one
// Entry per successful rename and the CLI lists the most recent entries. It is
// never consulted when deciding whether to rename a file.
package history
