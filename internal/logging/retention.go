package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names a directory of run logs to prune.
type RetentionTarget struct {
	Dir     string
	Pattern string
	// Pointer is the "current log" link (symlink or hard link). Whatever file
	// it resolves to is never pruned, however old.
	Pointer string
}

// CleanupOldLogs removes run logs older than retentionDays and returns how
// many were removed. A retentionDays value of 0 disables pruning. The file a
// target's Pointer resolves to is kept.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	pruned := 0
	for _, target := range targets {
		dir := strings.TrimSpace(target.Dir)
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		current := pointerTarget(target.Pointer)
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			if pat := strings.TrimSpace(target.Pattern); pat != "" {
				if matched, err := filepath.Match(pat, entry.Name()); err != nil || !matched {
					continue
				}
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			if current != nil && os.SameFile(current, info) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check file permissions and log_dir ownership"),
					String(FieldImpact, "old log file remains on disk"),
				)
				continue
			}
			pruned++
		}
	}
	if pruned > 0 {
		logger.Info("old run logs pruned",
			Int("count", pruned),
			Int("retention_days", retentionDays),
			String(FieldEventType, "log_pruned"),
		)
	}
	return pruned
}

// pointerTarget stats the file behind the pointer, following a symlink. A
// missing or dangling pointer protects nothing.
func pointerTarget(pointer string) os.FileInfo {
	if strings.TrimSpace(pointer) == "" {
		return nil
	}
	info, err := os.Stat(pointer)
	if err != nil {
		return nil
	}
	return info
}
