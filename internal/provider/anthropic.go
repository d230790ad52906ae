package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jonesrussell/mindshare/internal/domain"
)

const (
	anthropicMaxTokens   = 1024
	anthropicMaxSearches = 3
)

// Anthropic talks to the Anthropic Messages API. Web search runs through the
// native server-side tool, with sources collected from answer citations.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic creates the adapter for api.anthropic.com.
func NewAnthropic(apiKey string) *Anthropic {
	return &Anthropic{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

// Name implements Adapter.
func (a *Anthropic) Name() string {
	return domain.ProviderAnthropic
}

// Generate implements Adapter.
func (a *Anthropic) Generate(ctx context.Context, p Params) (*Result, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.ModelName),
		MaxTokens: anthropicMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.Question)),
		},
	}
	if p.SupportsTemperature {
		params.Temperature = anthropic.Float(defaultTemperature)
	}
	if p.UseWebSearch {
		params.Tools = []anthropic.ToolUnionParam{
			{
				OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{
					MaxUses: anthropic.Int(anthropicMaxSearches),
				},
			},
		}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &domain.GenerationError{Provider: domain.ProviderAnthropic, Model: p.ModelName, Err: err}
	}

	var text strings.Builder
	var sources []string
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		text.WriteString(block.Text)
		for _, citation := range block.Citations {
			if url := citation.URL; url != "" {
				sources = append(sources, url)
			}
		}
	}

	answer := strings.TrimSpace(text.String())
	if answer == "" {
		err := errors.New("empty answer")
		return nil, &domain.GenerationError{Provider: domain.ProviderAnthropic, Model: p.ModelName, Err: err}
	}

	result := &Result{Answer: answer}
	if p.UseWebSearch {
		if sources == nil {
			sources = []string{}
		}
		result.Sources = sources
	}
	return result, nil
}
