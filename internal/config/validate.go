package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"snapsense/internal/services"
)

// Validate ensures the configuration is usable. It does not require the naming
// service credential so that status and stop work on a bare install; see
// ValidateCredentials.
func (c *Config) Validate() error {
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWatch() error {
	if strings.TrimSpace(c.Watch.ScanDirectory) == "" {
		return errors.New("watch.scan_directory must be set")
	}
	if strings.TrimSpace(c.Watch.ScreenshotPrefix) == "" {
		return errors.New("watch.screenshot_prefix must be set")
	}
	if c.Watch.ScanInterval <= 0 {
		return errors.New("watch.scan_interval must be positive")
	}
	switch c.Watch.RetryBackoff {
	case RetryBackoffFixed, RetryBackoffExponential:
	default:
		return fmt.Errorf("watch.retry_backoff must be %q or %q", RetryBackoffFixed, RetryBackoffExponential)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if !strings.HasPrefix(c.LLM.BaseURL, "http://") && !strings.HasPrefix(c.LLM.BaseURL, "https://") {
		return fmt.Errorf("llm.base_url must be an http(s) URL, got %q", c.LLM.BaseURL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
}

// ValidateCredentials reports a configuration error when the naming service
// API key is absent.
func (c *Config) ValidateCredentials() error {
	if strings.TrimSpace(c.LLM.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/snapsense/config.toml"
	}
	return services.Wrap(
		services.ErrConfiguration,
		"config",
		"validate credentials",
		fmt.Sprintf("llm.api_key is required. Set SNAPSENSE_API_KEY or OPENROUTER_API_KEY, or edit %s (create with 'snapsense config init')", defaultPath),
		nil,
	)
}

// ValidateWatchDirectory reports a configuration error when the watched
// directory is missing or not a directory.
func (c *Config) ValidateWatchDirectory() error {
	info, err := os.Stat(c.Watch.ScanDirectory)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "config", "validate watch directory",
			fmt.Sprintf("watch.scan_directory %q is not accessible", c.Watch.ScanDirectory), err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrConfiguration, "config", "validate watch directory",
			fmt.Sprintf("watch.scan_directory %q is not a directory", c.Watch.ScanDirectory), nil)
	}
	return nil
}
