package port

import (
	"context"
	"encoding/json"
)

// Profile selects a configured model/temperature preset for an oracle call
// site. Selection reasoning tolerates nondeterminism; generation and
// refinement run at temperature 0.
type Profile string

const (
	ProfileSelection  Profile = "selection"
	ProfileGeneration Profile = "generation"
	ProfileRefinement Profile = "refinement"
)

// GenerateRequest carries one structured-generation request to the oracle.
type GenerateRequest struct {
	System string
	Prompt string

	// ResponseSchema is a JSON Schema document the reply must conform to.
	// When nil the reply is returned as free text.
	ResponseSchema json.RawMessage

	Profile Profile
}

// Usage reports token consumption for a single oracle call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns the combined token count.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Add accumulates another call's usage into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
}

// GenerateResult is the oracle's reply: the structured payload (validated
// against the request's response schema when one was given), the raw text,
// and token usage for metrics aggregation.
type GenerateResult struct {
	Payload json.RawMessage
	Text    string
	Model   string
	Usage   Usage
}

// Oracle abstracts the external text-generation service. It is the single
// point of contact for inference, assembly and refinement, so tests can
// substitute a scripted stub.
type Oracle interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}
