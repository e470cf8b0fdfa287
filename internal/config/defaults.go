package config

const (
	defaultScanDirectory    = "~/Desktop"
	defaultScanInterval     = 5
	defaultScreenshotPrefix = "Screenshot"
	defaultMaxRetries       = 3
	defaultRetryDelay       = 2
	defaultRetryBackoff     = RetryBackoffFixed
	defaultStateDir         = "~/.config/snapsense"
	defaultLogDir           = "~/.local/share/snapsense/logs"
	defaultLogRetentionDays = 30
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLLMBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel         = "anthropic/claude-3.7-sonnet"
	defaultLLMReferer       = "https://github.com/snapsense/snapsense"
	defaultLLMTitle         = "SnapSense"
	defaultLLMTimeout       = 60
	defaultLLMMaxTokens     = 100
	defaultHistoryEnabled   = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Watch: Watch{
			ScanDirectory:    defaultScanDirectory,
			ScanInterval:     defaultScanInterval,
			ScreenshotPrefix: defaultScreenshotPrefix,
			MaxRetries:       defaultMaxRetries,
			RetryDelay:       defaultRetryDelay,
			RetryBackoff:     defaultRetryBackoff,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeout,
			MaxTokens:      defaultLLMMaxTokens,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
	}
}
