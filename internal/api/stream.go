package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/minusxai/minusx"
)

// sseEvent pairs an SSE event name with its JSON data payload.
type sseEvent struct {
	name string
	data any
}

// streamDoneEvent closes a stream: the full turn response plus a timestamp.
type streamDoneEvent struct {
	Type               string                          `json:"type"`
	LogDiff            minusx.Log                      `json:"logDiff"`
	PendingToolCalls   []minusx.ToolCall               `json:"pending_tool_calls"`
	CompletedToolCalls []minusx.CompletedToolCall      `json:"completed_tool_calls"`
	LLMCalls           map[string]minusx.LLMCallDetail `json:"llm_calls"`
	Timestamp          string                          `json:"timestamp"`
}

type streamErrorEvent struct {
	Type      string `json:"type"`
	Error     string `json:"error"`
	ErrorID   string `json:"error_id"`
	Timestamp string `json:"timestamp"`
}

// handleChatStream runs the same turn pipeline as /api/chat but streams
// orchestrator activity over Server-Sent Events as it happens. Intermediate
// events arrive under the "streaming_event" name; the stream always ends
// with a single "done" or "error" event.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req ConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Disable buffering in nginx.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan sseEvent, 16)
	go func() {
		defer close(events)
		resp, err := s.processConversation(r.Context(), &req, conversationCallbacks{
			onContent: func(chunk, _ string) {
				events <- sseEvent{"streaming_event", minusx.NewContentEvent(chunk)}
			},
			onToolCreated: func(t *minusx.CompressedTask) {
				events <- sseEvent{"streaming_event", minusx.NewToolCreatedEvent(t)}
			},
			onToolCompleted: func(t *minusx.CompressedTask) {
				events <- sseEvent{"streaming_event", minusx.NewToolCompletedEvent(t)}
			},
		})
		if err != nil {
			msg, errorID := s.gatedError("chat stream failed", err)
			events <- sseEvent{"error", streamErrorEvent{
				Type:      "error",
				Error:     msg,
				ErrorID:   errorID,
				Timestamp: nowISO(),
			}}
			return
		}
		events <- sseEvent{"done", streamDoneEvent{
			Type:               "done",
			LogDiff:            resp.LogDiff,
			PendingToolCalls:   resp.PendingToolCalls,
			CompletedToolCalls: resp.CompletedToolCalls,
			LLMCalls:           resp.LLMCalls,
			Timestamp:          nowISO(),
		}}
	}()

	for ev := range events {
		data, err := json.Marshal(ev.data)
		if err != nil {
			s.logger.Error("sse marshal failed", "event", ev.name, "error", err)
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, data)
		flusher.Flush()
	}
}
