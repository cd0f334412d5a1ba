// Package genai calls an OpenAI-compatible chat completion endpoint.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// ErrDisabled is returned when no endpoint is configured.
var ErrDisabled = errors.New("genai: endpoint not configured")

type Config struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
	// RetryMax defaults to 2.
	RetryMax int
}

type Client struct {
	http  *retryablehttp.Client
	url   string
	key   string
	model string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	if cfg.RetryMax > 0 {
		rc.RetryMax = cfg.RetryMax
	}
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rc.HTTPClient = &http.Client{Timeout: timeout}
	rc.Logger = leveledLogger{logger.With().Str("component", "genai").Logger()}

	return &Client{http: rc, url: cfg.URL, key: cfg.APIKey, model: cfg.Model}
}

func (c *Client) Enabled() bool { return c != nil && c.url != "" }

// Complete sends a single user prompt and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	body := completionRequest{Model: c.model}
	if system != "" {
		body.Messages = append(body.Messages, message{Role: "system", Content: system})
	}
	body.Messages = append(body.Messages, message{Role: "user", Content: prompt})
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("genai: encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("genai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("genai: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("genai: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("genai: decode response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errors.New("genai: empty completion")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// leveledLogger routes retryablehttp's key/value logging into zerolog.
type leveledLogger struct {
	l zerolog.Logger
}

func (z leveledLogger) Error(msg string, kv ...interface{}) { z.emit(z.l.Error(), msg, kv) }
func (z leveledLogger) Warn(msg string, kv ...interface{})  { z.emit(z.l.Warn(), msg, kv) }
func (z leveledLogger) Info(msg string, kv ...interface{})  { z.emit(z.l.Debug(), msg, kv) }
func (z leveledLogger) Debug(msg string, kv ...interface{}) { z.emit(z.l.Trace(), msg, kv) }

func (leveledLogger) emit(evt *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		// Request objects are noisy; keep only their URL.
		if r, ok := kv[i+1].(*http.Request); ok {
			evt = evt.Str(key, r.URL.String())
			continue
		}
		evt = evt.Interface(key, kv[i+1])
	}
	evt.Msg(msg)
}
