package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/chatcc/evalsim/internal/config"
	"github.com/chatcc/evalsim/internal/httpapi"
	"github.com/chatcc/evalsim/internal/observability"
	"github.com/chatcc/evalsim/internal/provider"
	"github.com/chatcc/evalsim/internal/registry"
	"github.com/chatcc/evalsim/internal/simulate"
	"github.com/chatcc/evalsim/internal/store"
)

type BuildResult struct {
	Config  config.Config
	API     *httpapi.Server
	Store   store.Store
	Metrics *observability.Metrics

	// Cleanup should be called on shutdown to release external resources (DB pool, etc).
	Cleanup func() error
}

// Build wires the whole service from configuration: store, prompt
// registry client, provider credentials, simulation service, and the
// HTTP gateway.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}

	// One client for every outbound call; the timeout bounds a single
	// chat completion, the slowest call the service makes.
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}

	reg := registry.NewClient(cfg.RegistryBaseURL, cfg.RegistryAPIKey, httpClient)

	creds := provider.Credentials{
		Anthropic: provider.Credential{APIKey: cfg.AnthropicAPIKey, BaseURL: cfg.AnthropicBaseURL},
		OpenAI:    provider.Credential{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL},
		Gemini:    provider.Credential{APIKey: cfg.GeminiAPIKey, BaseURL: cfg.GeminiBaseURL},
	}

	sim := simulate.NewService(st, reg, creds, httpClient, metrics)
	api := httpapi.New(cfg, st, reg, sim, metrics)

	return &BuildResult{
		Config:  cfg,
		API:     api,
		Store:   st,
		Metrics: metrics,
		Cleanup: st.Close,
	}, nil
}
