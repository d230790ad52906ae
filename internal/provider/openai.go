package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jonesrussell/mindshare/internal/domain"
)

// Base URLs for the OpenAI-compatible providers.
const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	xaiBaseURL        = "https://api.x.ai/v1"
)

// onlineModelSuffix is OpenRouter's opt-in flag for web-grounded completions.
const onlineModelSuffix = ":online"

// OpenAICompatible talks to any provider exposing the OpenAI chat completions
// API. The zero-value base URL means the real OpenAI endpoint.
type OpenAICompatible struct {
	client        *openai.Client
	provider      string
	onlineSupport bool
}

// NewOpenAI creates the adapter for api.openai.com.
func NewOpenAI(apiKey string) *OpenAICompatible {
	return newCompatible(apiKey, "", domain.ProviderOpenAI, false)
}

// NewOpenRouter creates the adapter for openrouter.ai, which also serves as
// the fallback for providers without a dedicated adapter.
func NewOpenRouter(apiKey string) *OpenAICompatible {
	return newCompatible(apiKey, openRouterBaseURL, domain.ProviderOpenRouter, true)
}

// NewXAI creates the adapter for api.x.ai.
func NewXAI(apiKey string) *OpenAICompatible {
	return newCompatible(apiKey, xaiBaseURL, domain.ProviderXAI, false)
}

// NewCompatible creates an adapter against an arbitrary OpenAI-style
// endpoint. Used by tests to point at a local server.
func NewCompatible(apiKey, baseURL, providerName string) *OpenAICompatible {
	return newCompatible(apiKey, baseURL, providerName, false)
}

func newCompatible(apiKey, baseURL, providerName string, onlineSupport bool) *OpenAICompatible {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompatible{
		client:        openai.NewClientWithConfig(cfg),
		provider:      providerName,
		onlineSupport: onlineSupport,
	}
}

// Name implements Adapter.
func (a *OpenAICompatible) Name() string {
	return a.provider
}

// Generate implements Adapter. When the model supports object output it first
// requests a JSON {"entity": ...} response; any failure in that stage falls
// back to a plain-text completion rather than failing the job.
func (a *OpenAICompatible) Generate(ctx context.Context, p Params) (*Result, error) {
	if p.SupportsObjectOutput {
		if result, err := a.complete(ctx, p, true); err == nil {
			return result, nil
		}
	}

	result, err := a.complete(ctx, p, false)
	if err != nil {
		return nil, &domain.GenerationError{Provider: a.provider, Model: p.ModelName, Err: err}
	}
	return result, nil
}

func (a *OpenAICompatible) complete(ctx context.Context, p Params, structured bool) (*Result, error) {
	model := p.ModelName
	if p.UseWebSearch && a.onlineSupport {
		model += onlineModelSuffix
	}

	system := systemPrompt
	if structured {
		system = objectSystemPrompt
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: p.Question},
		},
	}
	if p.SupportsTemperature {
		req.Temperature = defaultTemperature
	}
	if structured {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty choices")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if structured {
		parsed, parseErr := parseEntityObject(answer)
		if parseErr != nil {
			return nil, parseErr
		}
		answer = parsed
	}
	if answer == "" {
		return nil, errors.New("empty answer")
	}

	result := &Result{Answer: answer}
	if p.UseWebSearch {
		// The chat completions API does not expose source annotations, so a
		// web-grounded answer carries an empty source list.
		result.Sources = []string{}
	}
	return result, nil
}

// parseEntityObject extracts the entity value from a {"entity": ...} reply.
func parseEntityObject(raw string) (string, error) {
	var envelope struct {
		Entity string `json:"entity"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return "", err
	}
	entity := strings.TrimSpace(envelope.Entity)
	if entity == "" {
		return "", errors.New("object response missing entity")
	}
	return entity, nil
}
