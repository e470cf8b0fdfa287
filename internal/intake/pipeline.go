package intake

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"snapsense/internal/history"
	"snapsense/internal/logging"
	"snapsense/internal/services"
	"snapsense/internal/services/llm"
)

// NamingOracle maps image bytes to a suggested descriptive name.
type NamingOracle interface {
	SuggestName(ctx context.Context, image []byte, mediaType string) (string, error)
}

// Renamer moves a file to a name derived from a suggestion.
type Renamer interface {
	Rename(originalPath, suggestedName string) (string, error)
}

// Journal records completed renames.
type Journal interface {
	Record(ctx context.Context, entry history.Entry) error
}

// Pipeline runs gate, settle, oracle, and rename for each candidate.
type Pipeline struct {
	gate     Gate
	settings Settings
	oracle   NamingOracle
	renamer  Renamer
	journal  Journal
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
	jitter   func() float64

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option customizes the pipeline.
type Option func(*Pipeline)

// WithJournal records every successful rename.
func WithJournal(journal Journal) Option {
	return func(p *Pipeline) {
		p.journal = journal
	}
}

// WithSleeper overrides how retry and settle waits are performed (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(p *Pipeline) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// WithJitter overrides the [0,1) source used for exponential backoff jitter.
func WithJitter(jitter func() float64) Option {
	return func(p *Pipeline) {
		if jitter != nil {
			p.jitter = jitter
		}
	}
}

// NewPipeline constructs a pipeline.
func NewPipeline(settings Settings, oracle NamingOracle, renamer Renamer, logger *slog.Logger, opts ...Option) *Pipeline {
	settings = settings.normalized()
	p := &Pipeline{
		gate:     NewGate(settings.Prefix),
		settings: settings,
		oracle:   oracle,
		renamer:  renamer,
		logger:   logging.NewComponentLogger(logger, "intake"),
		sleep:    sleepContext,
		jitter:   rand.Float64,
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Gate returns the eligibility filter used by the pipeline.
func (p *Pipeline) Gate() Gate {
	return p.gate
}

// Handle processes one candidate. It returns ErrIneligible when the gate
// rejects the path and ErrInFlight when the path is already being handled.
// Failures are retried up to MaxRetries attempts, except when the source file
// has disappeared, which ends the cycle immediately. The returned error is
// informational: the file is left in place and will be offered again by the
// next reconciliation scan.
func (p *Pipeline) Handle(ctx context.Context, candidate Candidate) (Result, error) {
	path := filepath.Clean(candidate.Path)
	result := Result{OriginalPath: path}
	if !p.gate.Eligible(path) {
		return result, ErrIneligible
	}
	if !p.claim(path) {
		return result, ErrInFlight
	}
	defer p.release(path)

	ctx = services.WithCandidateID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, p.logger).With(
		logging.String(logging.FieldPath, path),
		logging.String("source", string(candidate.Source)),
	)

	if err := p.settle(ctx, path); err != nil {
		if ctx.Err() == nil {
			logger.Info("candidate skipped; file changed state before naming", logging.Error(err))
		}
		return result, err
	}

	var lastErr error
	for attempt := 1; attempt <= p.settings.MaxRetries; attempt++ {
		result.Attempts = attempt
		attemptLogger := logger.With(logging.Int("attempt", attempt), logging.Int("max_attempts", p.settings.MaxRetries))

		suggestion, err := p.suggest(ctx, path)
		if err == nil {
			finalPath, renameErr := p.renamer.Rename(path, suggestion)
			if renameErr == nil {
				result.FinalPath = finalPath
				result.Suggestion = suggestion
				p.recordSuccess(ctx, attemptLogger, candidate, result)
				return result, nil
			}
			err = renameErr
		}
		lastErr = err

		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if sourceGone(path) {
			logging.WarnWithContext(attemptLogger, "rename abandoned; file changed state", "source_vanished",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the file was moved or deleted while it was being named"),
				logging.String(logging.FieldImpact, "no rename performed for this file"),
			)
			return result, err
		}
		if attempt == p.settings.MaxRetries {
			break
		}

		delay := p.settings.retryDelay(attempt, p.jitter)
		if hint, ok := llm.RetryAfter(err); ok && hint > delay {
			delay = min(hint, maxBackoffDelay)
		}
		attemptLogger.Info("naming attempt failed; retrying",
			logging.Error(err),
			logging.Duration("retry_in", delay),
		)
		if err := p.sleep(ctx, delay); err != nil {
			return result, err
		}
	}

	logging.WarnWithContext(logger, "naming gave up; file left for next scan", "naming_exhausted",
		logging.Error(lastErr),
		logging.Int("attempts", result.Attempts),
		logging.String(logging.FieldErrorHint, "check llm.api_key, llm.model, and network access"),
		logging.String(logging.FieldImpact, "file keeps its original name until a later scan succeeds"),
	)
	return result, lastErr
}

// suggest reads the file and asks the oracle for a name under the per-call timeout.
func (p *Pipeline) suggest(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrIO, "intake", "read image", fmt.Sprintf("read %q", path), err)
	}

	callCtx := services.WithStage(ctx, "oracle")
	if p.settings.OracleTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, p.settings.OracleTimeout)
		defer cancel()
	}
	suggestion, err := p.oracle.SuggestName(callCtx, data, llm.MediaTypeForPath(path))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrOracle, "intake", "suggest name", "naming service call failed", err)
	}
	return suggestion, nil
}

// settle waits until size and modification time stop changing across two
// polls SettleDelay apart, up to SettlePolls polls. A file that never settles
// is processed anyway; a file that disappears is an ErrIO.
func (p *Pipeline) settle(ctx context.Context, path string) error {
	prev, err := os.Stat(path)
	if err != nil {
		return vanishedError(path, err)
	}
	for poll := 0; poll < p.settings.SettlePolls; poll++ {
		if err := p.sleep(ctx, p.settings.SettleDelay); err != nil {
			return err
		}
		cur, err := os.Stat(path)
		if err != nil {
			return vanishedError(path, err)
		}
		if cur.Size() == prev.Size() && cur.ModTime().Equal(prev.ModTime()) {
			return nil
		}
		prev = cur
	}
	p.logger.Debug("file still changing after settle polls; proceeding",
		logging.String(logging.FieldPath, path),
		logging.Int("polls", p.settings.SettlePolls),
	)
	return nil
}

func (p *Pipeline) recordSuccess(ctx context.Context, logger *slog.Logger, candidate Candidate, result Result) {
	if !result.Renamed() {
		logger.Info("file already named; nothing to do", logging.String("suggestion", result.Suggestion))
		return
	}
	logger.Info("file renamed",
		logging.String("final_path", result.FinalPath),
		logging.String("suggestion", result.Suggestion),
		logging.String(logging.FieldEventType, "file_renamed"),
	)
	if p.journal == nil {
		return
	}
	entry := history.Entry{
		OriginalPath: result.OriginalPath,
		FinalPath:    result.FinalPath,
		Suggestion:   result.Suggestion,
		Attempts:     result.Attempts,
		Source:       string(candidate.Source),
		RenamedAt:    time.Now(),
	}
	// The rename already happened; a journal failure must not undo or retry it.
	if err := p.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		logging.WarnWithContext(logger, "rename journal write failed", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the history database in paths.state_dir"),
			logging.String(logging.FieldImpact, "rename missing from 'snapsense history'"),
		)
	}
}

func (p *Pipeline) claim(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[path]; busy {
		return false
	}
	p.inFlight[path] = struct{}{}
	return true
}

func (p *Pipeline) release(path string) {
	p.mu.Lock()
	delete(p.inFlight, path)
	p.mu.Unlock()
}

func sourceGone(path string) bool {
	_, err := os.Lstat(path)
	return errors.Is(err, fs.ErrNotExist)
}

func vanishedError(path string, err error) error {
	msg := fmt.Sprintf("stat %q", path)
	if errors.Is(err, fs.ErrNotExist) {
		msg = fmt.Sprintf("%q vanished", path)
	}
	return services.Wrap(services.ErrIO, "intake", "settle", msg, err)
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
