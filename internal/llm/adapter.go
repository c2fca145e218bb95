// Package llm provides the uniform provider-adapter contract (C4): a single
// interface with per-vendor payload/header shaping, timeout handling, and
// error-taxonomy mapping, used by both the evaluation pipeline and the
// semantic router.
package llm

import "context"

// Usage is the token-usage triple a provider may report.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest is the provider-agnostic input to Complete/Stream.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	TopP        float64

	// NormalizeSystemTopLevel controls whether system-role messages are
	// split out of Messages into a top-level system field before the
	// request is sent. Each adapter interprets this relative to its own
	// wire shape; vendor A ignores it (system passes through inline),
	// vendor B defaults to true when unset.
	NormalizeSystemTopLevel *bool

	// AssistantPrefill, when non-empty, is appended as a partial assistant
	// turn after Messages, letting a caller force JSON-leaning output
	// (vendor B's documented prefill trick; vendor A does not need it and
	// ignores this field).
	AssistantPrefill string

	// Extra carries vendor-specific escape-hatch fields that do not have a
	// first-class spot above.
	Extra map[string]interface{}
}

// CompletionResponse is the provider-agnostic output of Complete/Stream.
type CompletionResponse struct {
	Content  string
	Model    string
	Usage    Usage
	Metadata map[string]interface{}
}

// Adapter is the uniform contract every provider family implements.
type Adapter interface {
	Name() string
	SupportsStreaming() bool
	SupportsFunctionCalling() bool

	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	StreamComplete(ctx context.Context, req *CompletionRequest, onChunk func(string)) (*CompletionResponse, error)
}
