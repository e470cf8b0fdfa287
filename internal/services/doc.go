// Package services defines shared utilities consumed by the intake pipeline,
// the daemon supervisor, and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp candidate IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (naming service, file system, configuration, process state)
//     with errors.Is.
//
// Use these helpers when wiring new pipeline logic so error handling and
// observability stay uniform.
package services
