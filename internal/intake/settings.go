package intake

import (
	"time"

	"snapsense/internal/config"
)

const (
	defaultSettleDelay = 500 * time.Millisecond
	defaultSettlePolls = 10
	maxBackoffDelay    = 60 * time.Second
	backoffJitter      = 0.2
)

// Settings holds the per-file policy derived from configuration.
type Settings struct {
	Prefix        string
	MaxRetries    int
	RetryDelay    time.Duration
	Backoff       string
	OracleTimeout time.Duration
	SettleDelay   time.Duration
	SettlePolls   int
}

// SettingsFromConfig maps the [watch] and [llm] sections onto pipeline settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Prefix:        cfg.Watch.ScreenshotPrefix,
		MaxRetries:    cfg.Watch.MaxRetries,
		RetryDelay:    cfg.RetryDelay(),
		Backoff:       cfg.Watch.RetryBackoff,
		OracleTimeout: cfg.LLMTimeout(),
		SettleDelay:   defaultSettleDelay,
		SettlePolls:   defaultSettlePolls,
	}
}

func (s Settings) normalized() Settings {
	if s.MaxRetries < 1 {
		s.MaxRetries = 1
	}
	if s.RetryDelay < 0 {
		s.RetryDelay = 0
	}
	if s.Backoff == "" {
		s.Backoff = config.RetryBackoffFixed
	}
	if s.SettleDelay < 0 {
		s.SettleDelay = 0
	}
	if s.SettlePolls < 1 {
		s.SettlePolls = 1
	}
	return s
}

// retryDelay returns the wait before the attempt following attempt (1-based).
// Fixed backoff always waits RetryDelay. Exponential backoff doubles per attempt,
// applies +/-20% jitter, and caps at 60s.
func (s Settings) retryDelay(attempt int, jitter func() float64) time.Duration {
	if s.Backoff != config.RetryBackoffExponential || s.RetryDelay <= 0 {
		return s.RetryDelay
	}
	delay := s.RetryDelay
	for i := 1; i < attempt; i++ {
		if delay >= maxBackoffDelay/2 {
			delay = maxBackoffDelay
			break
		}
		delay *= 2
	}
	if jitter != nil {
		factor := 1 - backoffJitter + 2*backoffJitter*jitter()
		delay = time.Duration(float64(delay) * factor)
	}
	if delay > maxBackoffDelay {
		delay = maxBackoffDelay
	}
	return delay
}
