package minusx

// Tool-choice policies accepted by the LLM bridge.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceRequired = "required"
	ToolChoiceNone     = "none"
)

// ChatMessage is one message of an LLM thread. Content is a string or a
// list of content blocks; assistant messages may carry tool calls and
// tool messages reference the call they answer.
type ChatMessage struct {
	Role       string        `json:"role"`
	Content    any           `json:"content,omitempty"`
	ToolCalls  []RawToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// NewUserMessage creates a user message with plain text content.
func NewUserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

// NewSystemMessage creates a system message with plain text content.
func NewSystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}

// NewToolMessage creates a tool message answering toolCallID.
func NewToolMessage(toolCallID string, content any) ChatMessage {
	return ChatMessage{Role: "tool", ToolCallID: toolCallID, Content: content}
}

// RawToolCall is a tool call in provider wire shape: arguments are the
// raw JSON string exactly as the model produced it.
type RawToolCall struct {
	ID       string      `json:"id"`
	Type     string      `json:"type"`
	Function RawFunction `json:"function"`
}

type RawFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a tool call in client view shape: arguments stay a JSON
// object, and a pending call may carry the results of its already
// completed children for the client to replay.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name            string              `json:"name"`
	Arguments       map[string]any      `json:"arguments"`
	ChildTasksBatch [][]ChildTaskResult `json:"child_tasks_batch,omitempty"`
}

// ChildTaskResult is one completed child attached to a pending tool call.
type ChildTaskResult struct {
	ToolCallID string         `json:"tool_call_id"`
	Agent      string         `json:"agent"`
	Args       map[string]any `json:"args"`
	Result     any            `json:"result"`
}

// ToolResultMessage is a completed tool call as submitted by the client.
type ToolResultMessage struct {
	Role       string `json:"role"`
	ToolCallID string `json:"tool_call_id"`
	Content    any    `json:"content"`
}

// CompletedToolCall joins a task with its result for the response payload.
type CompletedToolCall struct {
	Role       string       `json:"role"`
	ToolCallID string       `json:"tool_call_id"`
	Content    any          `json:"content"`
	RunID      string       `json:"run_id"`
	Function   ToolFunction `json:"function"`
	CreatedAt  string       `json:"created_at"`
}

// Usage holds coarse token counts for one LLM call, for rate limiting.
// Full accounting lives in [LLMDebug].
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// LLMSettings selects the model and its calling conventions.
type LLMSettings struct {
	Model            string
	ResponseFormat   map[string]any
	ToolChoice       string
	IncludeWebSearch bool
}

// UserInfo identifies the requesting user to the provider, for usage
// attribution and search localization.
type UserInfo struct {
	Email string
	City  string
}

// CompletionRequest is one LLM call: a thread, tool descriptors produced
// by [AgentSpec.ToolSchema], and an optional streaming callback invoked
// with each text delta and the call's stream id.
type CompletionRequest struct {
	Messages  []ChatMessage
	Settings  *LLMSettings
	Tools     []map[string]any
	UserInfo  *UserInfo
	OnContent func(chunk, streamID string)
}

// LLMResponse is the assembled result of one streamed LLM call.
// ContentBlocks holds the text block (when content is non-empty) followed
// by any server-side tool result blocks in receipt order; ToolCalls holds
// client-side calls only.
type LLMResponse struct {
	Content          string           `json:"content"`
	ContentBlocks    []map[string]any `json:"content_blocks"`
	Role             string           `json:"role"`
	ToolCalls        []RawToolCall    `json:"tool_calls"`
	StreamID         string           `json:"stream_id"`
	FinishReason     string           `json:"finish_reason"`
	Citations        []any            `json:"citations"`
	WebSearchResults []map[string]any `json:"web_search_results"`
	Usage            Usage            `json:"-"`
}
