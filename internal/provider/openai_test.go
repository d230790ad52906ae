package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/mindshare/internal/config"
	"github.com/jonesrussell/mindshare/internal/domain"
	"github.com/jonesrussell/mindshare/internal/logger"
)

// chatHandler fakes an OpenAI-style chat completions endpoint, answering with
// contentFn applied to the decoded request.
func chatHandler(t *testing.T, contentFn func(req map[string]any) string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": contentFn(req)}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestOpenAICompatible_Generate(t *testing.T) {
	t.Run("object output is parsed from the JSON envelope", func(t *testing.T) {
		server := httptest.NewServer(chatHandler(t, func(req map[string]any) string {
			return `{"entity": "Breaking Bad"}`
		}))
		defer server.Close()

		adapter := NewCompatible("test-key", server.URL, domain.ProviderOpenAI)
		result, err := adapter.Generate(context.Background(), Params{
			ModelName:            "gpt-4o",
			Question:             "Best TV show?",
			SupportsObjectOutput: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "Breaking Bad", result.Answer)
		assert.Nil(t, result.Sources)
	})

	t.Run("falls back to plain text when object stage returns junk", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(chatHandler(t, func(req map[string]any) string {
			calls++
			if _, structured := req["response_format"]; structured {
				return "not json at all"
			}
			return "The Wire"
		}))
		defer server.Close()

		adapter := NewCompatible("test-key", server.URL, domain.ProviderOpenAI)
		result, err := adapter.Generate(context.Background(), Params{
			ModelName:            "gpt-4o",
			Question:             "Best TV show?",
			SupportsObjectOutput: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "The Wire", result.Answer)
		assert.Equal(t, 2, calls)
	})

	t.Run("web search requests carry an empty source list", func(t *testing.T) {
		server := httptest.NewServer(chatHandler(t, func(req map[string]any) string {
			return "Severance"
		}))
		defer server.Close()

		adapter := NewCompatible("test-key", server.URL, domain.ProviderOpenAI)
		result, err := adapter.Generate(context.Background(), Params{
			ModelName:    "gpt-4o",
			Question:     "Best TV show right now?",
			UseWebSearch: true,
		})
		require.NoError(t, err)
		require.NotNil(t, result.Sources)
		assert.Empty(t, result.Sources)
	})

	t.Run("provider failure is wrapped as a generation error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
		}))
		defer server.Close()

		adapter := NewCompatible("test-key", server.URL, domain.ProviderOpenAI)
		_, err := adapter.Generate(context.Background(), Params{ModelName: "gpt-4o", Question: "q"})
		require.Error(t, err)
		var genErr *domain.GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, domain.ProviderOpenAI, genErr.Provider)
		assert.Equal(t, "gpt-4o", genErr.Model)
	})
}

func TestParseEntityObject(t *testing.T) {
	entity, err := parseEntityObject(`{"entity": "  Dune  "}`)
	require.NoError(t, err)
	assert.Equal(t, "Dune", entity)

	_, err = parseEntityObject(`{"entity": ""}`)
	assert.Error(t, err)

	_, err = parseEntityObject(`plain text`)
	assert.Error(t, err)
}

func TestRegistry_Fallback(t *testing.T) {
	cfg := config.ProvidersConfig{
		OpenAIKey:     "k1",
		OpenRouterKey: "k2",
	}
	registry := NewRegistry(cfg, logger.NewNop())

	assert.Equal(t, domain.ProviderOpenAI, registry.For(domain.ProviderOpenAI).Name())

	// Google has no dedicated adapter and routes through OpenRouter.
	assert.Equal(t, domain.ProviderOpenRouter, registry.For(domain.ProviderGoogle).Name())
	assert.Equal(t, domain.ProviderOpenRouter, registry.For("some-new-provider").Name())
}

func TestRegistry_NothingConfigured(t *testing.T) {
	registry := NewRegistry(config.ProvidersConfig{}, logger.NewNop())
	assert.Nil(t, registry.For(domain.ProviderAnthropic))
}
