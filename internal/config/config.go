package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Retry backoff policies accepted by watch.retry_backoff.
const (
	RetryBackoffFixed       = "fixed"
	RetryBackoffExponential = "exponential"
)

// Watch contains the directory intake settings.
type Watch struct {
	ScanDirectory    string `toml:"scan_directory"`
	ScanInterval     int    `toml:"scan_interval"`
	ScreenshotPrefix string `toml:"screenshot_prefix"`
	MaxRetries       int    `toml:"max_retries"`
	RetryDelay       int    `toml:"retry_delay"`
	RetryBackoff     string `toml:"retry_backoff"`
}

// Paths contains locations for daemon state and logs.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// LLM contains the naming service connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxTokens      int    `toml:"max_tokens"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// History controls the rename journal.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Config encapsulates all configuration values for SnapSense.
//
// Configuration sections by subsystem:
//   - Watch: watched directory, filename prefix, scan cadence, retry policy
//   - Paths: PID/lock state directory and daemon logs
//   - LLM: naming service endpoint, model, and credentials
//   - Logging: log format, level, and retention
//   - History: rename journal toggle
type Config struct {
	Watch   Watch   `toml:"watch"`
	Paths   Paths   `toml:"paths"`
	LLM     LLM     `toml:"llm"`
	Logging Logging `toml:"logging"`
	History History `toml:"history"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/snapsense/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("snapsense.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories used by the daemon.
// The watched directory is not created; a missing one is a configuration error.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PIDFilePath returns the daemon PID file location.
func (c *Config) PIDFilePath() string {
	return filepath.Join(c.Paths.StateDir, "snapsense.pid")
}

// InstanceLockPath returns the lock held by a running daemon for its lifetime.
func (c *Config) InstanceLockPath() string {
	return filepath.Join(c.Paths.StateDir, "snapsense.instance.lock")
}

// DaemonLogPath returns the file receiving the detached daemon's stdout/stderr.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, "snapsense-daemon.out")
}

// CurrentLogPath returns the pointer to the active daemon run log.
func (c *Config) CurrentLogPath() string {
	return filepath.Join(c.Paths.LogDir, "snapsense.log")
}

// HistoryDBPath returns the rename journal database location.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// ScanInterval returns the reconciliation scan period.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Watch.ScanInterval) * time.Second
}

// RetryDelay returns the base delay between naming attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Watch.RetryDelay) * time.Second
}

// LLMTimeout returns the per-request timeout for the naming service.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the naming service settings in client form.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	MaxTokens      int
}

// GetLLM returns the naming service connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
		MaxTokens:      c.LLM.MaxTokens,
	}
}
