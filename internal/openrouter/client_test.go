package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompleteSendsChatRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer key-123" {
			t.Errorf("unexpected Authorization header %q", auth)
		}
		if r.Header.Get("X-Title") != "FriendFrenzy" {
			t.Errorf("expected X-Title header, got %q", r.Header.Get("X-Title"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "key-123", WithAttribution("https://friendfrenzy.app", "FriendFrenzy"))
	content, err := c.Complete(context.Background(), CompletionRequest{
		Model:       "m/one",
		System:      "sys",
		User:        "usr",
		Temperature: 0.8,
		MaxTokens:   800,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != `{"ok":true}` {
		t.Errorf("unexpected content %q", content)
	}
	if got.Model != "m/one" || len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "usr" {
		t.Errorf("unexpected request body %+v", got)
	}
	if got.MaxTokens != 800 || got.Temperature != 0.8 {
		t.Errorf("unexpected sampling parameters %+v", got)
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, func(err error) bool { return errors.Is(err, ErrRateLimited) }},
		{"server error", http.StatusBadGateway, `upstream down`, func(err error) bool {
			var se *StatusError
			return errors.As(err, &se) && se.StatusCode == http.StatusBadGateway && strings.Contains(se.Body, "upstream down")
		}},
		{"empty choices", http.StatusOK, `{"choices":[]}`, func(err error) bool { return errors.Is(err, ErrEmptyContent) }},
		{"blank content", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, func(err error) bool { return errors.Is(err, ErrEmptyContent) }},
		{"bad json", http.StatusOK, `not json`, func(err error) bool { return err != nil && strings.Contains(err.Error(), "decode") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "k").Complete(context.Background(), CompletionRequest{Model: "m"})
			if !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestStubMode(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", "", WithStubMode(true))
	if !c.Configured() {
		t.Error("stub client should report configured")
	}
	content, err := c.Complete(context.Background(), CompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(content, "friendJudgments") {
		t.Errorf("expected canned report, got %q", content)
	}
}
