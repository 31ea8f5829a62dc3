package minusx

import "context"

// Provider abstracts the LLM backend. Implementations stream internally,
// invoke req.OnContent for each text delta, and record an [LLMDebug]
// entry on the task debug collector carried by ctx.
type Provider interface {
	// Complete sends one chat completion and returns the assembled
	// response once the stream ends.
	Complete(ctx context.Context, req CompletionRequest) (*LLMResponse, error)
	// Name returns the provider name (e.g. "openaicompat").
	Name() string
}
