package llm

import "context"

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// ModelLister is implemented by backends that can enumerate the models
// they serve. Used by preflight checks before a generation run starts.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// DeterministicParams returns the sampling parameters used for test
// synthesis. Kept near zero temperature so regeneration for the same
// source produces stable output.
func DeterministicParams() GenerationParams {
	temp := float32(0.1)
	topP := float32(0.9)
	maxTokens := 8192
	return GenerationParams{
		Temperature: &temp,
		TopP:        &topP,
		MaxTokens:   &maxTokens,
	}
}
