// Package llm provides an OpenRouter chat client used as the naming oracle.
//
// The intake pipeline hands it the raw bytes of a screenshot; the client sends
// them as a base64 data URL image part alongside a fixed instruction and
// returns the model's filename suggestion as plain text.
//
// # Configuration
//
// Requires api_key and model, and optionally base_url, referer, title,
// timeout_seconds, and max_tokens.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.SuggestName: send an image, receive a filename stem.
// Client.HealthCheck: verify API key and model availability.
//
// # Errors
//
// Each call is one HTTP request. Non-2xx responses surface as *StatusError;
// RetryAfter exposes the server's Retry-After hint so the pipeline can stretch
// its own retry delay.
package llm
