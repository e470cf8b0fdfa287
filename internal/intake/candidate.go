package intake

import (
	"errors"
	"time"
)

// Source identifies which producer offered a candidate.
type Source string

const (
	SourceEvent  Source = "event"
	SourceScan   Source = "scan"
	SourceManual Source = "manual"
)

// Candidate is a path offered to the pipeline for possible processing.
type Candidate struct {
	Path         string
	DiscoveredAt time.Time
	Source       Source
}

// NewCandidate stamps a candidate with the current time.
func NewCandidate(path string, source Source) Candidate {
	return Candidate{Path: path, DiscoveredAt: time.Now(), Source: source}
}

// Result describes a completed rename.
type Result struct {
	OriginalPath string
	FinalPath    string
	Attempts     int
	Suggestion   string
}

// Renamed reports whether the file ended up at a different path.
func (r Result) Renamed() bool {
	return r.FinalPath != "" && r.FinalPath != r.OriginalPath
}

var (
	// ErrIneligible is returned when the gate rejects a candidate.
	ErrIneligible = errors.New("candidate not eligible")
	// ErrInFlight is returned when the same path is already being handled.
	ErrInFlight = errors.New("candidate already in flight")
)
