// Package provider adapts the executor to the AI model APIs. Each adapter
// takes a question plus model capability flags and returns a single short
// answer, optionally with the web sources consulted.
package provider

import "context"

// systemPrompt steers every model toward one specific named answer with no
// commentary, so downstream normalization has as little to strip as possible.
const systemPrompt = `You are a recommendation engine. Answer the question with exactly one specific, well-known named answer. Respond with only the name itself: no explanation, no reasoning, no punctuation around it.`

// objectSystemPrompt is the structured-output variant used when the model
// supports JSON object responses.
const objectSystemPrompt = `You are a recommendation engine. Answer the question with exactly one specific, well-known named answer. Respond with a JSON object of the form {"entity": "<name>"} and nothing else.`

// defaultTemperature keeps answers stable across repeated runs while leaving
// room for variation between run indexes.
const defaultTemperature = 0.3

// Params describes one generation request.
type Params struct {
	// ModelName is the provider-side model identifier, e.g. "gpt-4o".
	ModelName string
	// Question is the prompt question, passed verbatim.
	Question string
	// UseWebSearch asks the adapter to ground the answer in a live search.
	UseWebSearch bool
	// SupportsObjectOutput enables the structured JSON stage.
	SupportsObjectOutput bool
	// SupportsTemperature gates sending an explicit temperature.
	SupportsTemperature bool
}

// Result is one raw model answer. Sources is nil when the request ran without
// web search, and non-nil (possibly empty) when web search was used.
type Result struct {
	Answer  string
	Sources []string
}

// Adapter produces one answer from one model API.
type Adapter interface {
	// Name returns the provider name the adapter serves.
	Name() string
	// Generate asks the model the question and returns its raw answer.
	Generate(ctx context.Context, p Params) (*Result, error)
}
