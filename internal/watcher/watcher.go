package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"snapsense/internal/intake"
	"snapsense/internal/logging"
)

// DefaultQueueSize bounds the number of candidates waiting for the consumer.
const DefaultQueueSize = 256

// Handler processes one candidate. *intake.Pipeline satisfies it.
type Handler interface {
	Handle(ctx context.Context, candidate intake.Candidate) (intake.Result, error)
}

// Options configures a Watcher.
type Options struct {
	Directory    string
	ScanInterval time.Duration
	QueueSize    int
	// Eligible filters paths before they are queued. Nil accepts everything.
	Eligible func(path string) bool
}

// Watcher runs the event and scan producers and the single consumer.
type Watcher struct {
	dir          string
	scanInterval time.Duration
	queueSize    int
	eligible     func(string) bool
	handler      Handler
	logger       *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

// New constructs a Watcher.
func New(opts Options, handler Handler, logger *slog.Logger) *Watcher {
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	eligible := opts.Eligible
	if eligible == nil {
		eligible = func(string) bool { return true }
	}
	return &Watcher{
		dir:          filepath.Clean(opts.Directory),
		scanInterval: opts.ScanInterval,
		queueSize:    size,
		eligible:     eligible,
		handler:      handler,
		logger:       logging.NewComponentLogger(logger, "watcher"),
		pending:      make(map[string]struct{}),
	}
}

// Run watches the directory until ctx is cancelled. It returns nil after a
// clean shutdown; the consumer finishes its current candidate first.
func (w *Watcher) Run(ctx context.Context) error {
	if w.handler == nil {
		return errors.New("watcher: handler required")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watcher: watch %q: %w", w.dir, err)
	}

	w.logger.Info("watching directory",
		logging.String("directory", w.dir),
		logging.Duration("scan_interval", w.scanInterval),
		logging.Int("queue_size", w.queueSize),
	)

	queue := make(chan intake.Candidate, w.queueSize)
	rescan := make(chan struct{}, 1)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return w.watchEvents(groupCtx, fsw, queue, rescan) })
	group.Go(func() error { return w.scanLoop(groupCtx, queue, rescan) })
	group.Go(func() error { return w.consume(groupCtx, queue) })

	err = group.Wait()
	w.logger.Info("watcher stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (w *Watcher) watchEvents(ctx context.Context, fsw *fsnotify.Watcher, queue chan<- intake.Candidate, rescan chan<- struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return errors.New("watcher: event channel closed")
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			w.offerEvent(event.Name, queue)
		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("watcher: error channel closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("file events overflowed; scheduling a rescan",
					logging.Error(err),
					logging.String(logging.FieldEventType, "event_overflow"),
					logging.String(logging.FieldErrorHint, "many files arrived at once"),
					logging.String(logging.FieldImpact, "files are picked up by the rescan"),
				)
				select {
				case rescan <- struct{}{}:
				default:
				}
				continue
			}
			w.logger.Warn("file watch error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_error"),
				logging.String(logging.FieldErrorHint, "check the watched directory still exists"),
				logging.String(logging.FieldImpact, "new files may wait for the next scan"),
			)
		}
	}
}

// offerEvent queues an event candidate without blocking; a full queue drops it
// and the next scan recovers the file.
func (w *Watcher) offerEvent(path string, queue chan<- intake.Candidate) {
	if !w.accept(path) {
		return
	}
	if !w.markPending(path) {
		return
	}
	select {
	case queue <- intake.NewCandidate(path, intake.SourceEvent):
		w.logger.Debug("event candidate queued", logging.String(logging.FieldPath, path))
	default:
		w.clearPending(path)
		w.logger.Debug("queue full; dropping event candidate", logging.String(logging.FieldPath, path))
	}
}

func (w *Watcher) scanLoop(ctx context.Context, queue chan<- intake.Candidate, rescan <-chan struct{}) error {
	if err := w.scan(ctx, queue); err != nil {
		return err
	}
	var tick <-chan time.Time
	if w.scanInterval > 0 {
		ticker := time.NewTicker(w.scanInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
		case <-rescan:
		}
		if err := w.scan(ctx, queue); err != nil {
			return err
		}
	}
}

// scan offers every eligible file in the directory, blocking while the queue
// is full. Listing failures are logged and retried on the next tick.
func (w *Watcher) scan(ctx context.Context, queue chan<- intake.Candidate) error {
	paths, err := ListCandidates(w.dir)
	if err != nil {
		w.logger.Warn("directory scan failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "scan_failed"),
			logging.String(logging.FieldErrorHint, "check the watched directory exists and is readable"),
			logging.String(logging.FieldImpact, "files wait for the next scan"),
		)
		return nil
	}
	queued := 0
	for _, path := range paths {
		if !w.eligible(path) || !w.markPending(path) {
			continue
		}
		select {
		case <-ctx.Done():
			w.clearPending(path)
			return nil
		case queue <- intake.NewCandidate(path, intake.SourceScan):
			queued++
		}
	}
	if queued > 0 {
		w.logger.Debug("scan queued candidates", logging.Int("count", queued))
	}
	return nil
}

func (w *Watcher) consume(ctx context.Context, queue <-chan intake.Candidate) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case candidate := <-queue:
			w.clearPending(candidate.Path)
			w.dispatch(ctx, candidate)
		}
	}
}

// dispatch runs the handler. Per-file errors are logged by the pipeline and
// never stop the consumer.
func (w *Watcher) dispatch(ctx context.Context, candidate intake.Candidate) {
	if _, err := os.Lstat(candidate.Path); err != nil {
		w.logger.Debug("candidate no longer present", logging.String(logging.FieldPath, candidate.Path))
		return
	}
	_, err := w.handler.Handle(ctx, candidate)
	switch {
	case err == nil:
	case errors.Is(err, intake.ErrIneligible), errors.Is(err, intake.ErrInFlight):
		w.logger.Debug("candidate skipped", logging.String(logging.FieldPath, candidate.Path), logging.Error(err))
	case ctx.Err() != nil:
		w.logger.Debug("candidate interrupted by shutdown", logging.String(logging.FieldPath, candidate.Path))
	default:
		w.logger.Debug("candidate left for next scan", logging.String(logging.FieldPath, candidate.Path), logging.Error(err))
	}
}

func (w *Watcher) accept(path string) bool {
	if filepath.Dir(path) != w.dir || !w.eligible(path) {
		return false
	}
	info, err := os.Lstat(path)
	return err == nil && info.Mode().IsRegular()
}

func (w *Watcher) markPending(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pending[path]; ok {
		return false
	}
	w.pending[path] = struct{}{}
	return true
}

func (w *Watcher) clearPending(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
}
