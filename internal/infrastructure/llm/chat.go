package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"NewsAlerts/internal/config"
	"NewsAlerts/internal/ports"
)

const (
	defaultChatTimeout    = 90 * time.Second
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// ChatClient implements ports.RetrievalClient backed by OpenAI-compatible
// chat completion APIs (Perplexity and friends).
type ChatClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

var _ ports.RetrievalClient = (*ChatClient)(nil)

// ChatOption customizes the client.
type ChatOption func(*ChatClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ChatOption {
	return func(c *ChatClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(base, maxDelay time.Duration) ChatOption {
	return func(c *ChatClient) {
		c.baseDelay = base
		c.maxDelay = maxDelay
	}
}

// NewChatClient builds a client from configuration. It fails with
// config.ErrMissingCredentials when no API key is configured.
func NewChatClient(cfg config.RetrievalConfig, opts ...ChatOption) (*ChatClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("retrieval client: %w", config.ErrMissingCredentials)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultChatTimeout
	}
	c := &ChatClient{
		endpoint:    strings.TrimSpace(cfg.Endpoint),
		model:       strings.TrimSpace(cfg.Model),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		httpClient:  &http.Client{Timeout: timeout},
		maxAttempts: cfg.MaxRetries + 1,
		baseDelay:   defaultRetryBaseDelay,
		maxDelay:    defaultRetryMaxDelay,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.endpoint == "" {
		c.endpoint = "https://api.perplexity.ai/chat/completions"
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// StatusError is a non-2xx response other than an auth failure.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat request: http %d: %s", e.StatusCode, e.Body)
}

// Chat sends one system+user exchange and returns the assistant content.
// Timeouts, 408, 429 and 5xx responses are retried with backoff.
func (c *ChatClient) Chat(ctx context.Context, system, user string, opts ports.ChatOptions) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: strings.TrimSpace(system)},
			{Role: "user", Content: strings.TrimSpace(user)},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		content, err := c.once(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		delay, retry := c.retryDelay(ctx, err, attempt)
		if !retry {
			return "", err
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("chat request failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *ChatClient) once(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &AuthError{Provider: "retrieval", StatusCode: resp.StatusCode, Fingerprint: Fingerprint(c.apiKey)}
	case resp.StatusCode >= http.StatusMultipleChoices:
		retryAfter, _ := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After")))
		return "", &StatusError{
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(raw)), 512),
			RetryAfter: time.Duration(retryAfter) * time.Second,
		}
	}

	var completion chatResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("chat api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
		if text := strings.TrimSpace(choice.Text); text != "" {
			return text, nil
		}
	}
	return "", errors.New("chat response has no content")
}

func (c *ChatClient) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= c.maxAttempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return min(statusErr.RetryAfter, c.maxDelay), true
			}
			return c.backoff(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoff(attempt), true
	}
	return 0, false
}

func (c *ChatClient) backoff(attempt int) time.Duration {
	delay := c.baseDelay << (attempt - 1)
	if delay <= 0 || delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
