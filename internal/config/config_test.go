package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"snapsense/internal/config"
	"snapsense/internal/services"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SNAPSENSE_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearKeyEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "snapsense", "config.toml") {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if cfg.Watch.ScanDirectory != filepath.Join(tempHome, "Desktop") {
		t.Fatalf("unexpected scan directory: %q", cfg.Watch.ScanDirectory)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, ".config", "snapsense") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.PIDFilePath() != filepath.Join(tempHome, ".config", "snapsense", "snapsense.pid") {
		t.Fatalf("unexpected pid file path: %q", cfg.PIDFilePath())
	}
	if cfg.Watch.ScreenshotPrefix != "Screenshot" {
		t.Fatalf("unexpected prefix: %q", cfg.Watch.ScreenshotPrefix)
	}
	if cfg.Watch.ScanInterval != 5 || cfg.Watch.MaxRetries != 3 || cfg.Watch.RetryDelay != 2 {
		t.Fatalf("unexpected watch defaults: %+v", cfg.Watch)
	}
	if cfg.Watch.RetryBackoff != config.RetryBackoffFixed {
		t.Fatalf("unexpected retry backoff: %q", cfg.Watch.RetryBackoff)
	}
	if cfg.LLM.APIKey != "" {
		t.Fatalf("expected empty API key, got %q", cfg.LLM.APIKey)
	}
	if !cfg.History.Enabled {
		t.Fatal("expected history enabled by default")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	if _, err := os.Stat(cfg.Watch.ScanDirectory); !os.IsNotExist(err) {
		t.Fatalf("expected watch directory to stay uncreated, stat err=%v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearKeyEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "snapsense.toml")
	watchDir := filepath.Join(tempDir, "shots")

	type payload struct {
		Watch struct {
			ScanDirectory    string `toml:"scan_directory"`
			ScanInterval     int    `toml:"scan_interval"`
			ScreenshotPrefix string `toml:"screenshot_prefix"`
			MaxRetries       int    `toml:"max_retries"`
			RetryBackoff     string `toml:"retry_backoff"`
		} `toml:"watch"`
		LLM struct {
			APIKey string `toml:"api_key"`
			Model  string `toml:"model"`
		} `toml:"llm"`
	}
	custom := payload{}
	custom.Watch.ScanDirectory = watchDir
	custom.Watch.ScanInterval = 30
	custom.Watch.ScreenshotPrefix = "CleanShot"
	custom.Watch.MaxRetries = 5
	custom.Watch.RetryBackoff = "Exponential"
	custom.LLM.APIKey = "abc123"
	custom.LLM.Model = "openai/gpt-4o"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Watch.ScanDirectory != watchDir {
		t.Fatalf("unexpected scan directory: %q", cfg.Watch.ScanDirectory)
	}
	if cfg.ScanInterval().Seconds() != 30 {
		t.Fatalf("unexpected scan interval: %s", cfg.ScanInterval())
	}
	if cfg.Watch.ScreenshotPrefix != "CleanShot" {
		t.Fatalf("unexpected prefix: %q", cfg.Watch.ScreenshotPrefix)
	}
	if cfg.Watch.MaxRetries != 5 {
		t.Fatalf("unexpected max retries: %d", cfg.Watch.MaxRetries)
	}
	if cfg.Watch.RetryBackoff != config.RetryBackoffExponential {
		t.Fatalf("expected normalized backoff, got %q", cfg.Watch.RetryBackoff)
	}
	if cfg.Watch.RetryDelay != 2 {
		t.Fatalf("expected default retry delay to survive partial file, got %d", cfg.Watch.RetryDelay)
	}
	if cfg.LLM.Model != "openai/gpt-4o" {
		t.Fatalf("unexpected model: %q", cfg.LLM.Model)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		t.Fatalf("expected credentials from file to validate: %v", err)
	}
}

func TestAPIKeyFallsBackToEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	t.Setenv("SNAPSENSE_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "env-openrouter")
	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "env-openrouter" {
		t.Fatalf("expected OPENROUTER_API_KEY fallback, got %q", cfg.LLM.APIKey)
	}

	t.Setenv("SNAPSENSE_API_KEY", "env-snapsense")
	cfg, _, _, err = config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "env-snapsense" {
		t.Fatalf("expected SNAPSENSE_API_KEY to take precedence, got %q", cfg.LLM.APIKey)
	}
}

func TestFileAPIKeyWinsOverEnvironment(t *testing.T) {
	t.Setenv("SNAPSENSE_API_KEY", "env-key")
	configPath := filepath.Join(t.TempDir(), "snapsense.toml")
	if err := os.WriteFile(configPath, []byte("[llm]\napi_key = \"file-key\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "file-key" {
		t.Fatalf("expected file key, got %q", cfg.LLM.APIKey)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "snapsense.toml")
	if err := os.WriteFile(configPath, []byte("[watch\nscan_interval = "), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	defaults := config.Default()
	if cfg.Watch != defaults.Watch {
		t.Fatalf("sample watch section drifted from defaults: %+v vs %+v", cfg.Watch, defaults.Watch)
	}
	if cfg.LLM.Model != defaults.LLM.Model {
		t.Fatalf("sample model drifted from defaults: %q", cfg.LLM.Model)
	}
	if cfg.LLM.APIKey != "" {
		t.Fatalf("sample should not ship a key, got %q", cfg.LLM.APIKey)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"empty directory":  func(c *config.Config) { c.Watch.ScanDirectory = "" },
		"empty prefix":     func(c *config.Config) { c.Watch.ScreenshotPrefix = " " },
		"zero interval":    func(c *config.Config) { c.Watch.ScanInterval = 0 },
		"unknown backoff":  func(c *config.Config) { c.Watch.RetryBackoff = "linear" },
		"bad base url":     func(c *config.Config) { c.LLM.BaseURL = "openrouter.ai" },
		"unknown loglevel": func(c *config.Config) { c.Logging.Level = "verbose" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateCredentialsReportsConfigurationError(t *testing.T) {
	cfg := config.Default()
	err := cfg.ValidateCredentials()
	if err == nil {
		t.Fatal("expected error for missing api key")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	cfg.LLM.APIKey = "k"
	if err := cfg.ValidateCredentials(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateWatchDirectory(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Watch.ScanDirectory = dir
	if err := cfg.ValidateWatchDirectory(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	file := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	cfg.Watch.ScanDirectory = file
	if err := cfg.ValidateWatchDirectory(); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for file path, got %v", err)
	}

	cfg.Watch.ScanDirectory = filepath.Join(dir, "missing")
	if err := cfg.ValidateWatchDirectory(); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for missing dir, got %v", err)
	}
}

func TestMaxRetriesFloorIsOneAttempt(t *testing.T) {
	clearKeyEnv(t)
	configPath := filepath.Join(t.TempDir(), "snapsense.toml")
	if err := os.WriteFile(configPath, []byte("[watch]\nmax_retries = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Watch.MaxRetries != 1 {
		t.Fatalf("expected max retries clamped to 1, got %d", cfg.Watch.MaxRetries)
	}
}
