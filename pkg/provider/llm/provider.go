// Package llm defines the Provider interface for the language models behind
// the naturalization stage.
//
// A provider wraps a remote or local model API and exposes a uniform
// completion call so that callers never depend on a vendor SDK directly.
// Implementations must be safe for concurrent use.
package llm

import "context"

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
// At least one message is required.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message drives the reply.
	Messages []Message

	// SystemPrompt is prepended as a "system" message when non-empty.
	SystemPrompt string

	// Temperature controls randomness in [0.0, 2.0]. Zero leaves the provider
	// default in place.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	Content string

	// FinishReason is the backend's stop reason, e.g. "stop" or "length".
	FinishReason string

	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the reply. It must return
	// promptly once ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how many context tokens messages would consume.
	// The result may be approximate but should not undercount.
	CountTokens(messages []Message) (int, error)

	// Capabilities describes the configured model. The result is constant for
	// the lifetime of the Provider.
	Capabilities() ModelCapabilities
}
