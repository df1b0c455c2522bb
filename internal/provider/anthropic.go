package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/chatcc/evalsim/internal/chat"
)

const anthropicVersion = "2023-06-01"

type anthropicBackend struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

func newAnthropicBackend(cred Credential, httpClient *http.Client, model string) (*anthropicBackend, error) {
	if strings.TrimSpace(cred.APIKey) == "" {
		return nil, fmt.Errorf("anthropic api key is not configured")
	}
	baseURL := cred.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	return &anthropicBackend{
		apiKey:  cred.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    httpClient,
	}, nil
}

func (b *anthropicBackend) Family() string { return FamilyClaude }

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicAPIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Content []anthropicContent `json:"content"`
	Error   *anthropicAPIError `json:"error,omitempty"`
}

func (b *anthropicBackend) Complete(ctx context.Context, msgs []chat.Message) (string, error) {
	text, err := b.complete(ctx, msgs)
	if err != nil {
		return "", &ProviderError{Provider: FamilyClaude, Err: err}
	}
	return text, nil
}

func (b *anthropicBackend) complete(ctx context.Context, msgs []chat.Message) (string, error) {
	var systemParts []string
	inputs := make([]anthropicMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			systemParts = append(systemParts, m.Content)
		default:
			role := "user"
			if m.Role == chat.RoleAI {
				role = "assistant"
			}
			inputs = append(inputs, anthropicMessage{
				Role:    role,
				Content: []anthropicContent{{Type: "text", Text: m.Content}},
			})
		}
	}

	reqBody := anthropicRequest{
		Model:     b.model,
		MaxTokens: 8192,
		System:    strings.Join(systemParts, "\n"),
		Messages:  inputs,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", b.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var result anthropicResponse
	if unmarshalErr := json.Unmarshal(body, &result); unmarshalErr == nil && result.Error != nil {
		return "", fmt.Errorf("API error [%s]: %s", result.Error.Type, result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	var textBlocks []string
	for _, content := range result.Content {
		if content.Type == "text" && content.Text != "" {
			textBlocks = append(textBlocks, content.Text)
		}
	}
	if len(textBlocks) == 0 {
		return "", fmt.Errorf("no text content in API response (id=%s)", result.ID)
	}
	return strings.Join(textBlocks, "\n"), nil
}
