package organizer

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"snapsense/internal/logging"
	"snapsense/internal/services"
	"snapsense/internal/textutil"
)

// Organizer renames files in place to a sanitized, collision-free name.
type Organizer struct {
	logger *slog.Logger
	// beforeMove runs after a destination is chosen and before the move is
	// attempted. Tests use it to inject a racing writer.
	beforeMove func(destination string)
}

// New constructs an Organizer.
func New(logger *slog.Logger) *Organizer {
	return &Organizer{logger: logging.NewComponentLogger(logger, "organizer")}
}

// Rename moves originalPath to parent/<slug>.<ext>, where slug is the
// sanitized suggestion. When the destination exists it tries slug-1, slug-2,
// and so on until a free name is found. An existing file is never overwritten.
// If a candidate is originalPath itself the file is already correctly named
// and Rename returns originalPath without touching it.
func (o *Organizer) Rename(originalPath, suggestedName string) (string, error) {
	if _, err := os.Lstat(originalPath); err != nil {
		return "", services.Wrap(services.ErrIO, "rename", "stat source", fmt.Sprintf("source %q unavailable", originalPath), err)
	}

	dir := filepath.Dir(originalPath)
	ext := filepath.Ext(originalPath)
	slug := textutil.Slugify(suggestedName)
	logger := o.logger.With(logging.String(logging.FieldPath, originalPath), logging.String("slug", slug))

	for attempt := 0; ; attempt++ {
		candidate := destinationPath(dir, slug, ext, attempt)
		if candidate == originalPath {
			logger.Debug("file already carries its suggested name")
			return originalPath, nil
		}

		exists, err := pathExists(candidate)
		if err != nil {
			return "", services.Wrap(services.ErrIO, "rename", "check destination", fmt.Sprintf("inspect %q", candidate), err)
		}
		if exists {
			logger.Debug("destination taken; probing next", logging.String("destination", candidate))
			continue
		}

		if o.beforeMove != nil {
			o.beforeMove(candidate)
		}
		err = renameNoReplace(originalPath, candidate)
		if err == nil {
			return candidate, nil
		}
		if errors.Is(err, fs.ErrExist) {
			logger.Debug("destination appeared during rename; probing next", logging.String("destination", candidate))
			continue
		}
		return "", services.Wrap(services.ErrIO, "rename", "move file", fmt.Sprintf("rename to %q failed", candidate), err)
	}
}

// destinationPath builds parent/slug.ext for attempt 0 and parent/slug-N.ext
// afterwards. The original extension is reused verbatim.
func destinationPath(dir, slug, ext string, attempt int) string {
	name := slug
	if attempt > 0 {
		name = fmt.Sprintf("%s-%d", slug, attempt)
	}
	return filepath.Join(dir, name+ext)
}

func pathExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// renameIfAbsent is the portable fallback: a final existence check followed by
// a single rename(2). The window between the two is the only gap.
func renameIfAbsent(oldPath, newPath string) error {
	exists, err := pathExists(newPath)
	if err != nil {
		return err
	}
	if exists {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: fs.ErrExist}
	}
	return os.Rename(oldPath, newPath)
}
