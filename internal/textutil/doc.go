// Package textutil turns free-form naming suggestions into filesystem-safe
// filename stems.
//
// Slugify is the single sanitizer used before any rename: it folds accents,
// lowercases, hyphenates whitespace, and drops everything outside [a-z0-9_-],
// falling back to FallbackSlug when nothing survives.
package textutil
