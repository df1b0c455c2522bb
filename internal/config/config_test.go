package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_BIND_ADDR", "")
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "")
	t.Setenv("APP_PROVIDER_TIMEOUT", "")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "")
	t.Setenv("REGISTRY_BASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Fatalf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if cfg.ProviderTimeout != 2*time.Minute {
		t.Fatalf("ProviderTimeout = %v", cfg.ProviderTimeout)
	}
	if cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin should default to false")
	}
	if cfg.RegistryBaseURL == "" {
		t.Fatalf("RegistryBaseURL should have a default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_BIND_ADDR", ":9999")
	t.Setenv("APP_PROVIDER_TIMEOUT", "30s")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "yes")
	t.Setenv("ANTHROPIC_API_KEY", "  key-with-space  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9999" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.ProviderTimeout != 30*time.Second {
		t.Fatalf("ProviderTimeout = %v", cfg.ProviderTimeout)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = false, want true")
	}
	if cfg.AnthropicAPIKey != "key-with-space" {
		t.Fatalf("AnthropicAPIKey = %q, want trimmed", cfg.AnthropicAPIKey)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("APP_PROVIDER_TIMEOUT", "nonsense")
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error for APP_PROVIDER_TIMEOUT")
	}

	t.Setenv("APP_PROVIDER_TIMEOUT", "100ms")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for sub-second provider timeout")
	}

	t.Setenv("APP_PROVIDER_TIMEOUT", "")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "maybe")
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error for APP_ALLOW_ANY_ORIGIN")
	}
}
