package minusx

// StreamEventType identifies the kind of streaming event.
type StreamEventType string

const (
	// EventStreamedContent carries an incremental text chunk from the LLM.
	EventStreamedContent StreamEventType = "StreamedContent"
	// EventToolCreated signals a task was appended to the log.
	EventToolCreated StreamEventType = "ToolCreated"
	// EventToolCompleted signals a task received its result.
	EventToolCompleted StreamEventType = "ToolCompleted"
)

// StreamEvent is a typed event emitted while a conversation advances.
// Consumers receive these on the channel wired to the orchestrator's
// callbacks and forward them to the client.
type StreamEvent struct {
	// Type identifies the event kind.
	Type StreamEventType `json:"type"`
	// Payload carries the event body: a chunk map for content, a
	// [ToolCall] for created tasks, a [CompletedToolCall] for results.
	Payload any `json:"payload"`
}

// NewContentEvent wraps one streamed text delta.
func NewContentEvent(chunk string) StreamEvent {
	return StreamEvent{
		Type:    EventStreamedContent,
		Payload: map[string]any{"chunk": chunk},
	}
}

// NewToolCreatedEvent projects a freshly appended task into its tool-call
// shape.
func NewToolCreatedEvent(t *CompressedTask) StreamEvent {
	return StreamEvent{
		Type: EventToolCreated,
		Payload: ToolCall{
			ID:   t.UniqueID,
			Type: "function",
			Function: ToolFunction{
				Name:      t.Agent,
				Arguments: t.Args,
			},
		},
	}
}

// NewToolCompletedEvent projects a completed task into its tool-message
// shape.
func NewToolCompletedEvent(t *CompressedTask) StreamEvent {
	content := t.Result
	if content == nil {
		content = ""
	}
	return StreamEvent{
		Type: EventToolCompleted,
		Payload: CompletedToolCall{
			Role:       "tool",
			ToolCallID: t.UniqueID,
			Content:    content,
			RunID:      t.RunID,
			Function: ToolFunction{
				Name:      t.Agent,
				Arguments: t.Args,
			},
			CreatedAt: nowISO(),
		},
	}
}
