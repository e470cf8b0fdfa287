package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 60 * time.Second
	defaultMaxTokens   = 100
	snippetLimit       = 160
)

// Config captures the runtime settings required to talk to the naming model.
type Config struct {
	APIKey string
	// BaseURL is the full chat completions endpoint.
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	MaxTokens      int
}

// Client sends chat completion requests to an OpenRouter-compatible endpoint.
// Each call is a single request; retry policy belongs to the caller.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
			MaxTokens:      cfg.MaxTokens,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.MaxTokens <= 0 {
		client.cfg.MaxTokens = defaultMaxTokens
	}
	return client
}

// StatusError is returned for non-2xx responses. RetryAfter carries the
// server's Retry-After hint when one was sent.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, snippet(e.Body))
}

// RetryAfter extracts the server's requested wait from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return statusErr.RetryAfter, true
	}
	return 0, false
}

// HealthCheck asks the model for a tiny JSON object to prove the key, endpoint
// and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("llm health: api key required")
	}
	r, err := c.complete(ctx, chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You must respond with JSON only."},
			{Role: "user", Content: `Respond with {"ok":true}`},
		},
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	object := jsonObject(r.Content)
	if err := json.Unmarshal([]byte(object), &parsed); err != nil {
		return fmt.Errorf("llm health: parse reply %s: %w", snippet(r.Content), err)
	}
	if !parsed.OK {
		return fmt.Errorf("llm health: unexpected reply %s", snippet(r.Content))
	}
	return nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

// chatMessage content is either a plain string or a list of contentPart values
// when the message carries an image.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
		// Some providers send the streaming shape even when stream=false.
		Delta        completionMessage `json:"delta"`
		Text         string            `json:"text"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type completionMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

// reply is the first usable choice of a completion. Content may be empty when
// the model answered with nothing.
type reply struct {
	Content      string
	Refusal      string
	FinishReason string
	Choices      int
}

// complete performs one request and reduces the response to a reply. Missing
// choices are an error; an empty answer is not.
func (c *Client) complete(ctx context.Context, payload chatCompletionRequest) (reply, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return reply{}, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return reply{}, fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return reply{}, fmt.Errorf("llm request: http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return reply{}, fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return reply{}, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return reply{}, fmt.Errorf("llm request: decode response %s: %w", snippet(string(body)), err)
	}
	if completion.Error != nil {
		return reply{}, fmt.Errorf("llm request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return reply{}, fmt.Errorf("llm request: empty choices in %s", snippet(string(body)))
	}

	r := reply{Choices: len(completion.Choices)}
	for _, choice := range completion.Choices {
		if r.FinishReason == "" {
			r.FinishReason = strings.TrimSpace(choice.FinishReason)
		}
		if r.Refusal == "" {
			r.Refusal = firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal)
		}
		if content := firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); content != "" {
			r.Content = content
			return r, nil
		}
	}
	return r, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}

// stripCodeFence removes a surrounding ``` block, including a language tag.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(body, '\n'); newline >= 0 && !strings.ContainsAny(strings.TrimSpace(body[:newline]), " \t") {
		body = body[newline+1:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// jsonObject returns the outermost {...} in content, tolerating fences and
// chatter around it.
func jsonObject(content string) string {
	trimmed := stripCodeFence(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return trimmed
	}
	return trimmed[start : end+1]
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	if runes := []rune(clean); len(runes) > snippetLimit {
		clean = string(runes[:snippetLimit]) + "..."
	}
	return clean
}
