package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"snapsense/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The watched directory is created; state and log directories are not.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Watch.ScanDirectory = filepath.Join(base, "screenshots")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.LLM.APIKey = "test-key"
	cfgVal.Watch.RetryDelay = 0

	if err := os.MkdirAll(cfgVal.Watch.ScanDirectory, 0o755); err != nil {
		t.Fatalf("mkdir watch dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIKey sets the naming service key; an empty key simulates a missing credential.
func WithAPIKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = key
	}
}

// WithLLMBaseURL points the naming client at a test server.
func WithLLMBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}

// WithScanInterval overrides the reconciliation period in seconds.
func WithScanInterval(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Watch.ScanInterval = seconds
	}
}

// WithRetries sets the attempt budget and fixed delay in seconds.
func WithRetries(maxRetries, delaySeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Watch.MaxRetries = maxRetries
		b.cfg.Watch.RetryDelay = delaySeconds
	}
}

// WithHistory toggles the rename journal.
func WithHistory(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = enabled
	}
}

// WithoutWatchDirectory removes the watched directory after creation.
func WithoutWatchDirectory() ConfigOption {
	return func(b *configBuilder) {
		if err := os.RemoveAll(b.cfg.Watch.ScanDirectory); err != nil {
			b.t.Fatalf("remove watch dir: %v", err)
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
