package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaiapi "github.com/sashabaranov/go-openai"

	"github.com/chatcc/evalsim/internal/chat"
)

type openaiBackend struct {
	api   *openaiapi.Client
	model string
}

func newOpenAIBackend(cred Credential, model string) (*openaiBackend, error) {
	if strings.TrimSpace(cred.APIKey) == "" {
		return nil, fmt.Errorf("openai api key is not configured")
	}
	cfg := openaiapi.DefaultConfig(cred.APIKey)
	if cred.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(cred.BaseURL, "/")
	}
	return &openaiBackend{
		api:   openaiapi.NewClientWithConfig(cfg),
		model: model,
	}, nil
}

func (b *openaiBackend) Family() string { return FamilyOpenAI }

func (b *openaiBackend) Complete(ctx context.Context, msgs []chat.Message) (string, error) {
	apiMsgs := make([]openaiapi.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		role := openaiapi.ChatMessageRoleUser
		switch m.Role {
		case "system":
			role = openaiapi.ChatMessageRoleSystem
		case chat.RoleAI:
			role = openaiapi.ChatMessageRoleAssistant
		}
		apiMsgs = append(apiMsgs, openaiapi.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	resp, err := b.api.CreateChatCompletion(ctx, openaiapi.ChatCompletionRequest{
		Model:    b.model,
		Messages: apiMsgs,
	})
	if err != nil {
		return "", &ProviderError{Provider: FamilyOpenAI, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: FamilyOpenAI, Err: errors.New("openai returned empty response")}
	}
	return resp.Choices[0].Message.Content, nil
}
