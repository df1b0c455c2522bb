package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/chatcc/evalsim/internal/chat"
)

type geminiBackend struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

func newGeminiBackend(cred Credential, httpClient *http.Client, model string) (*geminiBackend, error) {
	if strings.TrimSpace(cred.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is not configured")
	}
	baseURL := cred.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &geminiBackend{
		apiKey:  cred.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    httpClient,
	}, nil
}

func (b *geminiBackend) Family() string { return FamilyGemini }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiSystemInstruction `json:"system_instruction,omitempty"`
}

type geminiCandidate struct {
	Content struct {
		Parts []geminiPart `json:"parts"`
	} `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (b *geminiBackend) Complete(ctx context.Context, msgs []chat.Message) (string, error) {
	text, err := b.complete(ctx, msgs)
	if err != nil {
		return "", &ProviderError{Provider: FamilyGemini, Err: err}
	}
	return text, nil
}

func (b *geminiBackend) complete(ctx context.Context, msgs []chat.Message) (string, error) {
	var system *geminiSystemInstruction
	contents := make([]geminiContent, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			if system == nil {
				system = &geminiSystemInstruction{}
			}
			system.Parts = append(system.Parts, geminiPart{Text: m.Content})
		default:
			role := "user"
			if m.Role == chat.RoleAI {
				role = "model"
			}
			contents = append(contents, geminiContent{
				Role:  role,
				Parts: []geminiPart{{Text: m.Content}},
			})
		}
	}

	payload, err := json.Marshal(geminiRequest{Contents: contents, SystemInstruction: system})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		b.baseURL, url.PathEscape(b.model), url.QueryEscape(b.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var result geminiResponse
	if unmarshalErr := json.Unmarshal(body, &result); unmarshalErr == nil && result.Error != nil {
		return "", fmt.Errorf("API error [%s]: %s", result.Error.Status, result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	var textBlocks []string
	for _, cand := range result.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				textBlocks = append(textBlocks, part.Text)
			}
		}
		break
	}
	if len(textBlocks) == 0 {
		return "", fmt.Errorf("no text content in API response")
	}
	return strings.Join(textBlocks, "\n"), nil
}
