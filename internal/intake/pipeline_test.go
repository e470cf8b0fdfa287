package intake

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"snapsense/internal/config"
	"snapsense/internal/history"
	"snapsense/internal/logging"
	"snapsense/internal/organizer"
	"snapsense/internal/services"
	"snapsense/internal/services/llm"
)

type oracleFunc func(ctx context.Context, image []byte, mediaType string) (string, error)

func (f oracleFunc) SuggestName(ctx context.Context, image []byte, mediaType string) (string, error) {
	return f(ctx, image, mediaType)
}

type recordingJournal struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (j *recordingJournal) Record(_ context.Context, entry history.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return nil
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	if d >= time.Second {
		s.mu.Lock()
		s.delays = append(s.delays, d)
		s.mu.Unlock()
	}
	return ctx.Err()
}

func (s *sleepRecorder) retryDelays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func testSettings() Settings {
	return Settings{
		Prefix:        "Screenshot",
		MaxRetries:    3,
		RetryDelay:    2 * time.Second,
		Backoff:       config.RetryBackoffFixed,
		OracleTimeout: time.Second,
		SettleDelay:   time.Millisecond,
		SettlePolls:   3,
	}
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("\x89PNG fake image"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newTestPipeline(settings Settings, oracle NamingOracle, opts ...Option) (*Pipeline, *sleepRecorder) {
	sleeper := &sleepRecorder{}
	opts = append([]Option{WithSleeper(sleeper.sleep), WithJitter(func() float64 { return 0.5 })}, opts...)
	return NewPipeline(settings, oracle, organizer.New(logging.NewNop()), logging.NewNop(), opts...), sleeper
}

func TestHandleRenamesWithSuggestion(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir, "Screenshot 2024-03-01 at 09.15.00.png")
	var gotMedia string
	var gotLen int
	oracle := oracleFunc(func(_ context.Context, image []byte, mediaType string) (string, error) {
		gotMedia = mediaType
		gotLen = len(image)
		return "Apple", nil
	})
	journal := &recordingJournal{}
	p, _ := newTestPipeline(testSettings(), oracle, WithJournal(journal))

	result, err := p.Handle(context.Background(), NewCandidate(src, SourceEvent))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	want := filepath.Join(dir, "apple.png")
	if result.FinalPath != want {
		t.Fatalf("final path = %q, want %q", result.FinalPath, want)
	}
	if result.Attempts != 1 || !result.Renamed() {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected original to be gone, stat err=%v", err)
	}
	if gotMedia != "image/png" || gotLen == 0 {
		t.Fatalf("oracle received media=%q len=%d", gotMedia, gotLen)
	}
	if len(journal.entries) != 1 {
		t.Fatalf("expected one journal entry, got %d", len(journal.entries))
	}
	entry := journal.entries[0]
	if entry.OriginalPath != src || entry.FinalPath != want || entry.Source != "event" || entry.Suggestion != "Apple" {
		t.Fatalf("unexpected journal entry %+v", entry)
	}
}

func TestHandleAvoidsExistingName(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "test-image.png")
	src := writeImage(t, dir, "Screenshot_1.png")
	oracle := oracleFunc(func(context.Context, []byte, string) (string, error) {
		return "Test Image", nil
	})
	p, _ := newTestPipeline(testSettings(), oracle)

	result, err := p.Handle(context.Background(), NewCandidate(src, SourceScan))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if want := filepath.Join(dir, "test-image-1.png"); result.FinalPath != want {
		t.Fatalf("final path = %q, want %q", result.FinalPath, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "test-image.png")); err != nil {
		t.Fatalf("existing file disturbed: %v", err)
	}
}

func TestHandleEmptySuggestionUsesFallback(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir, "Screenshot.PNG")
	oracle := oracleFunc(func(context.Context, []byte, string) (string, error) {
		return "!!!", nil
	})
	p, _ := newTestPipeline(testSettings(), oracle)

	result, err := p.Handle(context.Background(), NewCandidate(src, SourceEvent))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if want := filepath.Join(dir, "unnamed-image.PNG"); result.FinalPath != want {
		t.Fatalf("final path = %q, want %q", result.FinalPath, want)
	}
}

func TestHandleRetriesThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir, "Screenshot chart.png")
	calls := 0
	oracle := oracleFunc(func(context.Context, []byte, string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("503 service unavailable")
		}
		return "sales chart", nil
	})
	p, sleeper := newTestPipeline(testSettings(), oracle)

	result, err := p.Handle(context.Background(), NewCandidate(src, SourceEvent))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", result.Attempts)
	}
	if want := filepath.Join(dir, "sales-chart.png"); result.FinalPath != want {
		t.Fatalf("final path = %q, want %q", result.FinalPath, want)
	}
	if delays := sleeper.retryDelays(); len(delays) != 1 || delays[0] != 2*time.Second {
		t.Fatalf("retry delays = %v, want [2s]", delays)
	}
}

func TestHandleGivesUpAfterMaxRetries(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir, "Screenshot.png")
	calls := 0
	oracle := oracleFunc(func(context.Context, []byte, string) (string, error) {
		calls++
		return "", errors.New("connection refused")
	})
	journal := &recordingJournal{}
	p, sleeper := newTestPipeline(testSettings(), oracle, WithJournal(journal))

	result, err := p.Handle(context.Background(), NewCandidate(src, SourceScan))
	if !errors.Is(err, services.ErrOracle) {
		t.Fatalf("expected ErrOracle, got %v", err)
	}
	if calls != 3 || result.Attempts != 3 {
		t.Fatalf("calls=%d attempts=%d, want 3", calls, result.Attempts)
	}
	if delays := sleeper.retryDelays(); len(delays) != 2 {
		t.Fatalf("expected 2 waits between 3 attempts, got %v", delays)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("expected file to remain for the next scan: %v", err)
	}
	if len(journal.entries) != 0 {
		t.Fatalf("expected no journal entries, got %d", len(journal.entries))
	}
}

func TestHandleSingleAttemptWhenRetriesBelowOne(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir, "Screenshot.png")
	calls := 0
	oracle := oracleFunc(func(context.Context, []byte, string) (string, error) {
		calls++
		return "", errors.New("boom")
	})
	settings := testSettings()
	settings.MaxRetries = 0
	p, _ := newTestPipeline(settings, oracle)

	if _, err := p.Handle(context.Background(), NewCandidate(src, SourceScan)); err == nil {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestHandleStopsWhenSourceVanishes(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir, "Screenshot.png")
	calls := 0
	oracle := oracleFunc(func(context.Context, []byte, string) (string, error) {
		calls++
		if err := os.Remove(src); err != nil {
			t.Errorf("remove: %v", err)
		}
		return "apple", nil
	})
	p, sleeper := newTestPipeline(testSettings(), oracle)

	_, err := p.Handle(context.Background(), NewCandidate(src, SourceEvent))
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if delays := sleeper.retryDelays(); len(delays) != 0 {
		t.Fatalf("expected no retry waits, got %v", delays)
	}
	if _, err := os.Stat(filepath.Join(dir, "apple.png")); !os.IsNotExist(err) {
		t.Fatalf("expected no destination file, stat err=%v", err)
	}
}

func TestHandleMissingFileIsIOError(t *testing.T) {
	dir := t.TempDir()
	oracle := oracleFunc(func(context.Context, []byte, string) (string, error) {
		t.Fatal("oracle should not be called")
		return "", nil
	})
	p, _ := newTestPipeline(testSettings(), oracle)

	_, err := p.Handle(context.Background(), NewCandidate(filepath.Join(dir, "Screenshot.png"), SourceScan))
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestHandleIneligible(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir, "holiday.png")
	oracle := oracleFunc(func(context.Context, []byte, string) (string, error) {
		t.Fatal("oracle should not be called")
		return "", nil
	})
	p, _ := newTestPipeline(testSettings(), oracle)

	if _, err := p.Handle(context.Background(), NewCandidate(src, SourceEvent)); !errors.Is(err, ErrIneligible) {
		t.Fatalf("expected ErrIneligible, got %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("ineligible file touched: %v", err)
	}
}

func TestHandleSkipsPathAlreadyInFlight(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir, "Screenshot.png")
	entered := make(chan struct{})
	release := make(chan struct{})
	oracle := oracleFunc(func(context.Context, []byte, string) (string, error) {
		close(entered)
		<-release
		return "apple", nil
	})
	p, _ := newTestPipeline(testSettings(), oracle)

	done := make(chan error, 1)
	go func() {
		_, err := p.Handle(context.Background(), NewCandidate(src, SourceEvent))
		done <- err
	}()
	<-entered

	if _, err := p.Handle(context.Background(), NewCandidate(src, SourceScan)); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Handle: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "apple.png")); err != nil {
		t.Fatalf("expected renamed file: %v", err)
	}
}

func TestHandleCancellationAbandonsOracleCall(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir, "Screenshot.png")
	ctx, cancel := context.WithCancel(context.Background())
	oracle := oracleFunc(func(callCtx context.Context, _ []byte, _ string) (string, error) {
		cancel()
		<-callCtx.Done()
		return "", callCtx.Err()
	})
	p, _ := newTestPipeline(testSettings(), oracle)

	_, err := p.Handle(ctx, NewCandidate(src, SourceEvent))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("expected file untouched: %v", err)
	}
}

func TestHandleOracleTimeoutIsRetried(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir, "Screenshot.png")
	calls := 0
	oracle := oracleFunc(func(callCtx context.Context, _ []byte, _ string) (string, error) {
		calls++
		if calls == 1 {
			<-callCtx.Done()
			return "", callCtx.Err()
		}
		return "timeout recovered", nil
	})
	settings := testSettings()
	settings.OracleTimeout = 20 * time.Millisecond
	p, _ := newTestPipeline(settings, oracle)

	result, err := p.Handle(context.Background(), NewCandidate(src, SourceEvent))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if want := filepath.Join(dir, "timeout-recovered.png"); result.FinalPath != want {
		t.Fatalf("final path = %q, want %q", result.FinalPath, want)
	}
}

func TestRetryDelayPolicies(t *testing.T) {
	mid := func() float64 { return 0.5 }
	fixed := Settings{RetryDelay: 5 * time.Second, Backoff: config.RetryBackoffFixed}
	for attempt := 1; attempt <= 4; attempt++ {
		if got := fixed.retryDelay(attempt, mid); got != 5*time.Second {
			t.Fatalf("fixed attempt %d = %v, want 5s", attempt, got)
		}
	}

	exp := Settings{RetryDelay: 5 * time.Second, Backoff: config.RetryBackoffExponential}
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second, 60 * time.Second, 60 * time.Second}
	for i, w := range want {
		if got := exp.retryDelay(i+1, mid); got != w {
			t.Fatalf("exponential attempt %d = %v, want %v", i+1, got, w)
		}
	}

	low := exp.retryDelay(2, func() float64 { return 0 })
	if low != 8*time.Second {
		t.Fatalf("low jitter = %v, want 8s", low)
	}
	high := exp.retryDelay(4, func() float64 { return 0.999999 })
	if high > 60*time.Second || high < 47*time.Second {
		t.Fatalf("high jitter = %v, want within (47s, 60s]", high)
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Watch.ScreenshotPrefix = "Shot"
	cfg.Watch.MaxRetries = 4
	cfg.Watch.RetryDelay = 7
	cfg.LLM.TimeoutSeconds = 30

	s := SettingsFromConfig(&cfg)
	if s.Prefix != "Shot" || s.MaxRetries != 4 || s.RetryDelay != 7*time.Second || s.OracleTimeout != 30*time.Second {
		t.Fatalf("unexpected settings %+v", s)
	}
	if s.SettleDelay != 500*time.Millisecond || s.SettlePolls != 10 {
		t.Fatalf("unexpected settle policy %+v", s)
	}
}

func TestHandleHonoursRetryAfterHint(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir, "Screenshot busy.png")
	calls := 0
	oracle := oracleFunc(func(context.Context, []byte, string) (string, error) {
		calls++
		switch calls {
		case 1:
			return "", &llm.StatusError{StatusCode: 429, RetryAfter: 9 * time.Second}
		case 2:
			return "", &llm.StatusError{StatusCode: 429, RetryAfter: 5 * time.Minute}
		default:
			return "queue", nil
		}
	})
	p, sleeper := newTestPipeline(testSettings(), oracle)

	result, err := p.Handle(context.Background(), NewCandidate(src, SourceScan))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if filepath.Base(result.FinalPath) != "queue.png" {
		t.Fatalf("unexpected result %+v", result)
	}
	got := sleeper.retryDelays()
	want := []time.Duration{9 * time.Second, maxBackoffDelay}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("retry delays = %v, want %v", got, want)
	}
}
