package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/minusxai/minusx"
)

// ConversationRequest is the body of /api/chat and /api/chat/stream. The
// client owns the conversation log and sends it back on every turn; the
// server is stateless.
type ConversationRequest struct {
	Log                minusx.Log                 `json:"log"`
	UserMessage        *string                    `json:"user_message"`
	CompletedToolCalls []minusx.ToolResultMessage `json:"completed_tool_calls"`
	Agent              string                     `json:"agent"`
	AgentArgs          map[string]any             `json:"agent_args"`
	SessionToken       string                     `json:"session_token"`
}

// ConversationResponse carries only the entries appended this turn plus the
// derived tool call views the frontend renders.
type ConversationResponse struct {
	LogDiff            minusx.Log                      `json:"logDiff"`
	PendingToolCalls   []minusx.ToolCall               `json:"pending_tool_calls"`
	CompletedToolCalls []minusx.CompletedToolCall      `json:"completed_tool_calls"`
	LLMCalls           map[string]minusx.LLMCallDetail `json:"llm_calls"`
	Error              *string                         `json:"error,omitempty"`
}

// CloseConversationRequest is the body of /api/chat/close.
type CloseConversationRequest struct {
	Log minusx.Log `json:"log"`
}

// CloseConversationResponse holds the interruption results appended by close.
type CloseConversationResponse struct {
	LogDiff minusx.Log `json:"logDiff"`
}

func newConversationResponse(diff minusx.Log, pending []minusx.ToolCall, completed []minusx.CompletedToolCall, llmCalls map[string]minusx.LLMCallDetail) *ConversationResponse {
	if diff == nil {
		diff = minusx.Log{}
	}
	if pending == nil {
		pending = []minusx.ToolCall{}
	}
	if completed == nil {
		completed = []minusx.CompletedToolCall{}
	}
	if llmCalls == nil {
		llmCalls = map[string]minusx.LLMCallDetail{}
	}
	return &ConversationResponse{
		LogDiff:            diff,
		PendingToolCalls:   pending,
		CompletedToolCalls: completed,
		LLMCalls:           llmCalls,
	}
}

// conversationCallbacks carries the streaming hooks into processConversation.
// All fields are optional.
type conversationCallbacks struct {
	onContent       func(chunk, streamID string)
	onToolCreated   func(*minusx.CompressedTask)
	onToolCompleted func(*minusx.CompressedTask)
}

func (s *Server) orchestratorOptions(cb conversationCallbacks) []minusx.OrchestratorOption {
	opts := []minusx.OrchestratorOption{minusx.WithLogger(s.logger)}
	if s.tracer != nil {
		opts = append(opts, minusx.WithTracer(s.tracer))
	}
	if cb.onContent != nil {
		opts = append(opts, minusx.OnContent(cb.onContent))
	}
	if cb.onToolCreated != nil {
		opts = append(opts, minusx.OnToolCreated(cb.onToolCreated))
	}
	completed := cb.onToolCompleted
	if s.taskHook != nil {
		observe, next := s.taskHook, completed
		completed = func(t *minusx.CompressedTask) {
			observe(t)
			if next != nil {
				next(t)
			}
		}
	}
	if completed != nil {
		opts = append(opts, minusx.OnToolCompleted(completed))
	}
	return opts
}

// processConversation is the shared turn pipeline behind /api/chat and
// /api/chat/stream. A turn either starts a new root task (user_message set)
// or resumes the latest one with the supplied tool results. When some pending
// tool calls are still unanswered the orchestrator is not touched at all and
// the remaining calls are echoed back.
func (s *Server) processConversation(ctx context.Context, req *ConversationRequest, cb conversationCallbacks) (*ConversationResponse, error) {
	isStart := req.UserMessage != nil
	initLen := len(req.Log)

	var previousID *string
	if _, root := minusx.LatestRoot(req.Log); root != nil {
		id := root.UniqueID
		previousID = &id
	}

	// Starting a new turn interrupts whatever was still pending.
	updated, remaining := minusx.UpdateLogWithCompletedToolCalls(req.Log, req.CompletedToolCalls, isStart)
	if len(remaining) > 0 {
		diff := updated[initLen:]
		return newConversationResponse(
			diff,
			remaining,
			minusx.CompletedToolCalls(updated, initLen),
			minusx.ExtractLLMCalls(diff),
		), nil
	}

	orch := minusx.NewOrchestrator(updated, s.orchestratorOptions(cb)...)

	var runErr error
	if isStart {
		args := make(map[string]any, len(req.AgentArgs)+1)
		for k, v := range req.AgentArgs {
			args[k] = v
		}
		args["goal"] = *req.UserMessage
		runErr = orch.Run(ctx, []minusx.AgentCall{{Agent: req.Agent, Args: args}}, nil, previousID)
	} else {
		runErr = orch.Resume(ctx)
	}
	if runErr != nil && !minusx.IsUserInput(runErr) {
		return nil, runErr
	}

	full := orch.Compressed().Log()
	diff := full[initLen:]
	return newConversationResponse(
		diff,
		minusx.PendingToolCalls(full),
		minusx.CompletedToolCalls(full, initLen),
		minusx.ExtractLLMCalls(diff),
	), nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req ConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.processConversation(r.Context(), &req, conversationCallbacks{})
	if err != nil {
		msg, _ := s.gatedError("chat failed", err)
		resp = newConversationResponse(nil, nil, nil, nil)
		resp.Error = &msg
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req CloseConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	initLen := len(req.Log)
	updated, _ := minusx.UpdateLogWithCompletedToolCalls(req.Log, nil, true)
	writeJSON(w, http.StatusOK, CloseConversationResponse{LogDiff: updated[initLen:]})
}

// gatedError logs the failure with a correlation id and returns the message
// safe to send to the client.
func (s *Server) gatedError(msg string, err error) (string, string) {
	errorID := minusx.NewErrorID()
	s.logger.Error(msg, "error_id", errorID, "error", err)
	if s.production {
		return "An internal error occurred. Please contact support.", errorID
	}
	return fmt.Sprintf("[%s] %v", errorID, err), errorID
}
