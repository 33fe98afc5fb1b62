// Package openrouter provides a chat-completions client for OpenRouter
// compatible text generation APIs.
package openrouter

import (
	"errors"
	"fmt"
)

// ErrRateLimited is returned when the backend answers 429.
var ErrRateLimited = errors.New("model rate limited")

// ErrEmptyContent is returned when a successful response carries no text.
var ErrEmptyContent = errors.New("model returned empty content")

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Model      string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model %s returned status %d: %s", e.Model, e.StatusCode, e.Body)
}

// CompletionRequest is one system+user exchange sent to a single model.
type CompletionRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}
