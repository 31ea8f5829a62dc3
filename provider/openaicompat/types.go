// Package openaicompat implements the LLM bridge over an OpenAI-compatible
// chat completions API fronted by a LiteLLM proxy. All calls stream; the
// provider assembles the final response from SSE chunks and records cost
// and latency accounting from the proxy's response headers.
package openaicompat

import (
	minusx "github.com/minusxai/minusx"
)

// --- Request types ---

// ChatRequest is the chat completions request body. Messages pass through
// in bridge shape; tools carry the schemas produced by AgentSpec.ToolSchema
// untouched so cache checkpoints can be injected per model family.
type ChatRequest struct {
	Model          string                `json:"model"`
	Messages       []minusx.ChatMessage  `json:"messages"`
	ResponseFormat map[string]any        `json:"response_format,omitempty"`
	ToolChoice     string                `json:"tool_choice,omitempty"`
	Tools          []map[string]any      `json:"tools"`
	DropParams     bool                  `json:"drop_params"`
	User           string                `json:"user,omitempty"`
	Stream         bool                  `json:"stream"`
	StreamOptions  *StreamOptions        `json:"stream_options,omitempty"`

	// Model-family specific knobs. BuildBody sets at most one token limit.
	Temperature         *float64       `json:"temperature,omitempty"`
	MaxTokens           int            `json:"max_tokens,omitempty"`
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
	ReasoningEffort     string         `json:"reasoning_effort,omitempty"`
	Verbosity           string         `json:"verbosity,omitempty"`
	WebSearchOptions    map[string]any `json:"web_search_options,omitempty"`
}

// StreamOptions controls streaming behavior.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// --- Stream chunk types ---

// ChatChunk is one SSE data payload of a streamed completion.
type ChatChunk struct {
	ID      string        `json:"id"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage"`
}

// ChunkChoice is a single choice within a chunk.
type ChunkChoice struct {
	Index        int          `json:"index"`
	Delta        *ChoiceDelta `json:"delta"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

// ChoiceDelta is the incremental payload of a chunk choice.
type ChoiceDelta struct {
	Role                   string          `json:"role,omitempty"`
	Content                string          `json:"content,omitempty"`
	ToolCalls              []ToolCallDelta `json:"tool_calls,omitempty"`
	ProviderSpecificFields *ProviderFields `json:"provider_specific_fields,omitempty"`
}

// ToolCallDelta is an incremental tool call update. Index identifies which
// accumulating call the fragment belongs to; id and name arrive once,
// arguments arrive as string fragments.
type ToolCallDelta struct {
	Index    int           `json:"index"`
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type,omitempty"`
	Function FunctionDelta `json:"function"`
}

// FunctionDelta holds a fragment of the function name or arguments.
type FunctionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ProviderFields carries passthrough fields some upstreams attach to
// deltas: web search citations and result blocks.
type ProviderFields struct {
	Citation         map[string]any   `json:"citation,omitempty"`
	WebSearchResults []map[string]any `json:"web_search_results,omitempty"`
}

// Usage contains token usage statistics, usually sent in the final chunk.
// Cost is set when the proxy includes cost in streaming usage.
type Usage struct {
	TotalTokens             int            `json:"total_tokens"`
	PromptTokens            int            `json:"prompt_tokens"`
	CompletionTokens        int            `json:"completion_tokens"`
	CompletionTokensDetails map[string]any `json:"completion_tokens_details,omitempty"`
	PromptTokensDetails     map[string]any `json:"prompt_tokens_details,omitempty"`
	Cost                    *float64       `json:"cost,omitempty"`
}
