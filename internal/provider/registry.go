package provider

import (
	"github.com/jonesrussell/mindshare/internal/config"
	"github.com/jonesrussell/mindshare/internal/domain"
	"github.com/jonesrussell/mindshare/internal/logger"
)

// Registry maps provider names to adapters. Providers without a dedicated
// adapter, including "google", are served through OpenRouter, which proxies
// their models under the same names.
type Registry struct {
	adapters map[string]Adapter
	fallback Adapter
	logger   logger.Logger
}

// NewRegistry wires one adapter per configured provider. Providers with an
// empty API key are simply not registered, so their jobs fail fast with a
// generation error instead of a confusing auth error.
func NewRegistry(cfg config.ProvidersConfig, log logger.Logger) *Registry {
	registry := &Registry{
		adapters: make(map[string]Adapter),
		logger:   log,
	}

	if cfg.OpenAIKey != "" {
		registry.adapters[domain.ProviderOpenAI] = NewOpenAI(cfg.OpenAIKey)
	}
	if cfg.AnthropicKey != "" {
		registry.adapters[domain.ProviderAnthropic] = NewAnthropic(cfg.AnthropicKey)
	}
	if cfg.XAIKey != "" {
		registry.adapters[domain.ProviderXAI] = NewXAI(cfg.XAIKey)
	}
	if cfg.OpenRouterKey != "" {
		openRouter := NewOpenRouter(cfg.OpenRouterKey)
		registry.adapters[domain.ProviderOpenRouter] = openRouter
		registry.fallback = openRouter
	}

	return registry
}

// Register adds or replaces an adapter. Tests use it to install fakes.
func (r *Registry) Register(name string, adapter Adapter) {
	r.adapters[name] = adapter
}

// For returns the adapter for a provider name, falling back to OpenRouter for
// unknown providers. Returns nil when neither is configured.
func (r *Registry) For(providerName string) Adapter {
	if adapter, ok := r.adapters[providerName]; ok {
		return adapter
	}
	if r.fallback != nil && r.logger != nil {
		r.logger.Debug("no dedicated adapter for provider, using openrouter",
			logger.String("provider", providerName))
	}
	return r.fallback
}
