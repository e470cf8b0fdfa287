package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"snapsense/internal/intake"
)

// ListCandidates returns the regular files directly inside dir, sorted by name.
// Subdirectories and symlinks are skipped.
func ListCandidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", dir, err)
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// SweepReport summarizes a foreground reconciliation pass.
type SweepReport struct {
	Results []intake.Result
	Failed  []string
	Skipped int
}

// Renamed counts files that moved to a new name.
func (r SweepReport) Renamed() int {
	n := 0
	for _, res := range r.Results {
		if res.Renamed() {
			n++
		}
	}
	return n
}

// Sweep hands every file in dir to handler once, in name order. Ineligible
// files are counted as skipped. It stops early only when ctx is cancelled.
func Sweep(ctx context.Context, dir string, handler Handler) (SweepReport, error) {
	var report SweepReport
	paths, err := ListCandidates(dir)
	if err != nil {
		return report, err
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result, err := handler.Handle(ctx, intake.NewCandidate(path, intake.SourceManual))
		switch {
		case err == nil:
			report.Results = append(report.Results, result)
		case errors.Is(err, intake.ErrIneligible), errors.Is(err, intake.ErrInFlight):
			report.Skipped++
		case ctx.Err() != nil:
			return report, ctx.Err()
		default:
			report.Failed = append(report.Failed, path)
		}
	}
	return report, nil
}
