// Package intake decides whether a candidate file should be renamed and drives
// it through settle, naming, and rename.
//
// Gate is the pure eligibility check (image extension allowlist plus a
// case-sensitive filename prefix). Pipeline owns the per-file policy: it waits
// for the file to stop changing, asks the naming oracle for a suggestion under
// a per-call timeout, renames the file, and retries oracle failures with a
// fixed or exponential delay. File system failures are not retried because the
// file has changed state; the next reconciliation scan will offer it again if
// it is still eligible.
//
// All per-file errors stay inside Handle's return value. Callers log or ignore
// them; nothing here panics or terminates the watch loop.
package intake
