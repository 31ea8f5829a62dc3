package minusx

import "context"

// LLMDebug is the accounting record for a single LLM call. Field tags are
// part of the client contract and must not change.
type LLMDebug struct {
	Model                   string         `json:"model"`
	Duration                float64        `json:"duration"`
	TotalTokens             int            `json:"total_tokens"`
	PromptTokens            int            `json:"prompt_tokens"`
	CompletionTokens        int            `json:"completion_tokens"`
	Cost                    float64        `json:"cost"`
	CompletionTokensDetails map[string]any `json:"completion_tokens_details,omitempty"`
	PromptTokensDetails     map[string]any `json:"prompt_tokens_details,omitempty"`
	FinishReason            string         `json:"finish_reason,omitempty"`
	CallID                  string         `json:"lllm_call_id,omitempty"`
	OverheadMS              float64        `json:"lllm_overhead_time_ms,omitempty"`
	Extra                   map[string]any `json:"extra,omitempty"`
}

// TaskDebug accumulates debug information for one execution phase of a
// task. The orchestrator creates one per phase, threads it through the
// context, and flushes it to the log as a TaskDebugEntry when the phase
// ends.
type TaskDebug struct {
	Duration float64
	LLM      []*LLMDebug
}

// AddLLM records one LLM call against the current phase.
func (d *TaskDebug) AddLLM(dbg *LLMDebug) {
	d.LLM = append(d.LLM, dbg)
}

type taskDebugCtxKey struct{}

// WithTaskDebug returns a child context carrying the debug collector for
// the task being executed.
func WithTaskDebug(ctx context.Context, d *TaskDebug) context.Context {
	return context.WithValue(ctx, taskDebugCtxKey{}, d)
}

// TaskDebugFromContext retrieves the current task's debug collector.
// Returns a throwaway collector when none is set, so providers can always
// record without nil checks.
func TaskDebugFromContext(ctx context.Context) *TaskDebug {
	if d, ok := ctx.Value(taskDebugCtxKey{}).(*TaskDebug); ok {
		return d
	}
	return &TaskDebug{}
}
