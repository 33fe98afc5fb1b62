package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody caps how much of an error response is kept for logging.
const maxErrorBody = 2048

// Client handles communication with the chat completions endpoint
type Client struct {
	baseURL    string
	apiKey     string
	referer    string
	title      string
	httpClient *http.Client
	stubMode   bool
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAttribution sets the referer and title headers OpenRouter uses to
// attribute traffic to an app.
func WithAttribution(referer, title string) Option {
	return func(c *Client) {
		c.referer = referer
		c.title = title
	}
}

// WithStubMode makes Complete return canned content without a network call.
func WithStubMode(stub bool) Option {
	return func(c *Client) { c.stubMode = stub }
}

// NewClient creates a new client for the given base URL (e.g.
// https://openrouter.ai/api/v1) and API key.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether the client can make real requests.
func (c *Client) Configured() bool {
	return c != nil && (c.stubMode || c.apiKey != "")
}

// Complete sends one chat completion request and returns the text of the
// first choice.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.stubMode {
		return stubContent(req), nil
	}

	jsonData, err := json.Marshal(chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		httpReq.Header.Set("X-Title", c.title)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%s: %w", req.Model, ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{Model: req.Model, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s: %w", req.Model, ErrEmptyContent)
	}

	return decoded.Choices[0].Message.Content, nil
}

// stubContent fabricates a well-formed report naming nobody in particular.
// Local development only.
func stubContent(req CompletionRequest) string {
	return "```json\n" + `{
  "friendJudgments": [
    {"name": "Stub Friend", "judgment": "Runs the group chat like a Bollywood villain with a Notion workspace."}
  ],
  "songDedications": [
    {"name": "Stub Friend", "song": "Levitating", "artist": "Dua Lipa", "vibe": "Unbothered", "reason": "Floats above every argument they started."}
  ],
  "groupVerdict": {"summary": "Stub mode (` + req.Model + `): a group chat held together by screenshots and denial."},
  "pairCommentaries": []
}` + "\n```"
}
