// Package provider maps model identifiers onto the closed set of
// hosted chat-completion backends and composes them with a resolved
// prompt template into an invocable pipeline.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/chatcc/evalsim/internal/chat"
	"github.com/chatcc/evalsim/internal/registry"
)

const (
	FamilyClaude = "claude"
	FamilyOpenAI = "openai"
	FamilyGemini = "gemini"
)

// UnsupportedModelError reports a model family outside the closed set.
type UnsupportedModelError struct {
	Family string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported model family: %s", e.Family)
}

// ProviderError wraps a failed hosted-model call with the provider
// that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// throttleMarkers are matched case-insensitively against provider
// error text to decide whether a failure should be surfaced as
// retry-later rather than a hard error.
var throttleMarkers = []string{"quota", "rate limit", "exceeded", "overloaded"}

// IsThrottled reports whether err looks like a quota or rate-limit
// rejection from a hosted provider.
func IsThrottled(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range throttleMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Credential is one provider's API access configuration.
type Credential struct {
	APIKey  string
	BaseURL string
}

// Credentials carries every backend's credential, threaded explicitly
// from process configuration rather than read from ambient globals.
type Credentials struct {
	Anthropic Credential
	OpenAI    Credential
	Gemini    Credential
}

// Backend is one hosted chat-completion service. Complete sends the
// rendered prompt messages and returns the assistant text.
type Backend interface {
	Family() string
	Complete(ctx context.Context, msgs []chat.Message) (string, error)
}

// ParseModelName splits a model identifier into family and submodel.
// Identifiers without a colon default to the claude family.
func ParseModelName(modelName string) (family, submodel string) {
	if idx := strings.Index(modelName, ":"); idx >= 0 {
		return modelName[:idx], modelName[idx+1:]
	}
	return FamilyClaude, modelName
}

// New selects the backend for a model identifier.
func New(creds Credentials, httpClient *http.Client, modelName string) (Backend, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	family, submodel := ParseModelName(modelName)
	switch family {
	case FamilyClaude:
		return newAnthropicBackend(creds.Anthropic, httpClient, submodel)
	case FamilyOpenAI:
		return newOpenAIBackend(creds.OpenAI, submodel)
	case FamilyGemini:
		return newGeminiBackend(creds.Gemini, httpClient, submodel)
	default:
		return nil, &UnsupportedModelError{Family: family}
	}
}

// Pipeline is the composition of a resolved template and a selected
// backend: Invoke renders the template with the inputs and sends the
// result through the backend.
type Pipeline struct {
	Template *registry.Template
	Backend  Backend
}

func (p Pipeline) Invoke(ctx context.Context, inputs map[string]string) (string, error) {
	return p.Backend.Complete(ctx, p.Template.Render(inputs))
}
