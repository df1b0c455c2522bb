package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chatcc/evalsim/internal/chat"
)

func TestParseModelName(t *testing.T) {
	tests := []struct {
		in           string
		wantFamily   string
		wantSubmodel string
	}{
		{"openai:gpt-4", "openai", "gpt-4"},
		{"claude-3-haiku-20240307", "claude", "claude-3-haiku-20240307"},
		{"gemini:gemini-2.0-flash", "gemini", "gemini-2.0-flash"},
		{"claude:claude-3-opus:beta", "claude", "claude-3-opus:beta"},
	}
	for _, tt := range tests {
		family, submodel := ParseModelName(tt.in)
		if family != tt.wantFamily || submodel != tt.wantSubmodel {
			t.Errorf("ParseModelName(%q) = (%q, %q), want (%q, %q)",
				tt.in, family, submodel, tt.wantFamily, tt.wantSubmodel)
		}
	}
}

func TestNewUnsupportedFamily(t *testing.T) {
	_, err := New(Credentials{}, nil, "mistral:foo")
	var unsupported *UnsupportedModelError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %v, want UnsupportedModelError", err)
	}
	if unsupported.Family != "mistral" {
		t.Fatalf("Family = %q, want mistral", unsupported.Family)
	}
	if !strings.Contains(err.Error(), "mistral") {
		t.Fatalf("error text should mention the family: %v", err)
	}
}

func TestNewRequiresCredential(t *testing.T) {
	if _, err := New(Credentials{}, nil, "claude-3-haiku-20240307"); err == nil {
		t.Fatalf("expected error when anthropic key is missing")
	}
	if _, err := New(Credentials{}, nil, "openai:gpt-4"); err == nil {
		t.Fatalf("expected error when openai key is missing")
	}
	if _, err := New(Credentials{}, nil, "gemini:gemini-2.0-flash"); err == nil {
		t.Fatalf("expected error when gemini key is missing")
	}
}

func TestIsThrottled(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Rate Limit reached for requests", true},
		{"you have exceeded your current quota", true},
		{"server Overloaded, try later", true},
		{"invalid api key", false},
		{"", false},
	}
	for _, tt := range tests {
		var err error
		if tt.msg != "" {
			err = &ProviderError{Provider: "claude", Err: errors.New(tt.msg)}
		}
		if got := IsThrottled(err); got != tt.want {
			t.Errorf("IsThrottled(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestAnthropicComplete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "key" {
			t.Errorf("x-api-key = %q", got)
		}
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.System != "be kind" {
			t.Errorf("system = %q", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "msg_1",
			"content": []map[string]string{{"type": "text", "text": "hello back"}},
		})
	}))
	defer ts.Close()

	b, err := newAnthropicBackend(Credential{APIKey: "key", BaseURL: ts.URL}, ts.Client(), "claude-3-haiku-20240307")
	if err != nil {
		t.Fatalf("newAnthropicBackend: %v", err)
	}
	got, err := b.Complete(context.Background(), []chat.Message{
		{Role: "system", Content: "be kind"},
		{Role: chat.RoleHuman, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "hello back" {
		t.Fatalf("text = %q", got)
	}
}

func TestAnthropicCompleteAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "rate_limit_error", "message": "rate limit reached"},
		})
	}))
	defer ts.Close()

	b, err := newAnthropicBackend(Credential{APIKey: "key", BaseURL: ts.URL}, ts.Client(), "claude-3-haiku-20240307")
	if err != nil {
		t.Fatalf("newAnthropicBackend: %v", err)
	}
	_, err = b.Complete(context.Background(), []chat.Message{{Role: chat.RoleHuman, Content: "hi"}})
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if !IsThrottled(err) {
		t.Fatalf("rate-limit error should be throttled: %v", err)
	}
}

func TestGeminiComplete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "key" {
			t.Errorf("key = %q", got)
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) != 2 || req.Contents[1].Role != "model" {
			t.Errorf("contents = %+v", req.Contents)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": "gemini says hi"}}}},
			},
		})
	}))
	defer ts.Close()

	b, err := newGeminiBackend(Credential{APIKey: "key", BaseURL: ts.URL}, ts.Client(), "gemini-2.0-flash")
	if err != nil {
		t.Fatalf("newGeminiBackend: %v", err)
	}
	got, err := b.Complete(context.Background(), []chat.Message{
		{Role: chat.RoleHuman, Content: "hi"},
		{Role: chat.RoleAI, Content: "prior reply"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "gemini says hi" {
		t.Fatalf("text = %q", got)
	}
}

func TestNewSelectsFamilies(t *testing.T) {
	creds := Credentials{
		Anthropic: Credential{APIKey: "a"},
		OpenAI:    Credential{APIKey: "o"},
		Gemini:    Credential{APIKey: "g"},
	}
	tests := []struct {
		model string
		want  string
	}{
		{"claude-3-haiku-20240307", FamilyClaude},
		{"claude:claude-3-opus", FamilyClaude},
		{"openai:gpt-4", FamilyOpenAI},
		{"gemini:gemini-2.0-flash", FamilyGemini},
	}
	for _, tt := range tests {
		b, err := New(creds, nil, tt.model)
		if err != nil {
			t.Fatalf("New(%q): %v", tt.model, err)
		}
		if b.Family() != tt.want {
			t.Fatalf("New(%q).Family() = %q, want %q", tt.model, b.Family(), tt.want)
		}
	}
}
