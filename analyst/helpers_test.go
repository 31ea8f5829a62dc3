package analyst

import (
	"context"
	"sync"
	"testing"

	minusx "github.com/minusxai/minusx"
)

// scriptProvider returns scripted responses keyed by call number and
// records every request for assertions.
type scriptProvider struct {
	mu    sync.Mutex
	calls int
	reqs  []minusx.CompletionRequest
	fn    func(n int, req minusx.CompletionRequest) (*minusx.LLMResponse, error)
}

func (p *scriptProvider) Complete(ctx context.Context, req minusx.CompletionRequest) (*minusx.LLMResponse, error) {
	p.mu.Lock()
	n := p.calls
	p.calls++
	p.reqs = append(p.reqs, req)
	p.mu.Unlock()
	if p.fn == nil {
		return stopResponse(""), nil
	}
	return p.fn(n, req)
}

func (p *scriptProvider) Name() string { return "script" }

func (p *scriptProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *scriptProvider) request(n int) minusx.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reqs[n]
}

func stopResponse(content string) *minusx.LLMResponse {
	return &minusx.LLMResponse{Role: "assistant", Content: content, FinishReason: "stop"}
}

func toolCallResponse(id, name, args string) *minusx.LLMResponse {
	return &minusx.LLMResponse{
		Role:         "assistant",
		FinishReason: "tool_calls",
		ToolCalls: []minusx.RawToolCall{{
			ID:       id,
			Type:     "function",
			Function: minusx.RawFunction{Name: name, Arguments: args},
		}},
	}
}

// registerAnalyst rebinds the shared registry to this test's provider.
// Tests that touch the registry must not run in parallel.
func registerAnalyst(t *testing.T, p minusx.Provider) {
	t.Helper()
	Register(Config{Provider: p, Model: "claude-sonnet-4-6"})
}

func ptr[T any](v T) *T { return &v }

func taskEntry(uniqueID, agent, runID string, parent *string, args map[string]any) *minusx.Task {
	return &minusx.Task{
		Type:           minusx.EntryTask,
		ParentUniqueID: parent,
		RunID:          runID,
		Agent:          agent,
		Args:           args,
		UniqueID:       uniqueID,
		CreatedAt:      "2025-01-01T00:00:00.000000+00:00",
	}
}

func resultEntry(taskID string, result any) *minusx.TaskResult {
	return &minusx.TaskResult{
		Type:         minusx.EntryTaskResult,
		TaskUniqueID: taskID,
		Result:       result,
		CreatedAt:    "2025-01-01T00:00:01.000000+00:00",
	}
}
