package minusx

import (
	"context"
	"strconv"
)

// Shared fixtures: a minimal set of registered agents covering the plain,
// parameterized, dispatching, and client-suspending execution paths, plus
// a scripted Provider stub and log entry builders.

const defaultGreeting = "Hello! I'm the default agent. I received your message and I'm ready to help."

func init() {
	Register(TalkToUserSpec())

	Register(&AgentSpec{
		Name:        "DefaultAgent",
		Description: "Returns a fixed greeting.",
		New: func(_ TaskHandle, _ map[string]any) (Agent, error) {
			return &defaultAgent{}, nil
		},
	})

	Register(&AgentSpec{
		Name:        "EchoAgent",
		Description: "Repeats the message back.",
		Params:      []ParamSpec{{Name: "message", Required: true}},
		New: func(_ TaskHandle, args map[string]any) (Agent, error) {
			msg, _ := args["message"].(string)
			return &echoAgent{message: msg}, nil
		},
	})

	Register(&AgentSpec{
		Name:        "SimpleTool",
		Description: "Returns a fixed string.",
		Params:      []ParamSpec{{Name: "value", Required: true}},
		New: func(_ TaskHandle, args map[string]any) (Agent, error) {
			value, _ := args["value"].(string)
			return &simpleTool{value: value}, nil
		},
	})

	Register(NewClientToolSpec("UserInputTool", "Executes on the client.", nil))
	Register(NewClientToolSpec("UserInputToolBackend", "Executes on the client, backend variant.", nil))

	Register(&AgentSpec{
		Name:        "MultiToolAgent",
		Description: "Dispatches client tools and reads conversation history.",
		New: func(h TaskHandle, _ map[string]any) (Agent, error) {
			a := &multiToolAgent{handle: h}
			if prev := h.Orchestrator.PreviousRootTasks(); len(prev) > 0 {
				for i, j := 0, len(prev)-1; i < j; i, j = i+1, j-1 {
					prev[i], prev[j] = prev[j], prev[i]
				}
				a.previousThread = RootTasksToThread(prev, h.Orchestrator)
			}
			return a, nil
		},
	})
}

type defaultAgent struct{}

func (*defaultAgent) Reduce(context.Context, [][]*CompressedTask) error { return nil }
func (*defaultAgent) Run(context.Context) (any, error)                  { return defaultGreeting, nil }

type echoAgent struct {
	message string
}

func (*echoAgent) Reduce(context.Context, [][]*CompressedTask) error { return nil }
func (a *echoAgent) Run(context.Context) (any, error) {
	return "You said: " + a.message, nil
}

type simpleTool struct {
	value string
}

func (*simpleTool) Reduce(context.Context, [][]*CompressedTask) error { return nil }
func (t *simpleTool) Run(context.Context) (any, error) {
	return "Tool result: " + t.value, nil
}

// multiToolAgent dispatches two client tools on its first run, then
// completes once both results are in. With prior history it returns the
// thread length instead, which the resume tests use as proof the history
// was reachable.
type multiToolAgent struct {
	handle         TaskHandle
	childCount     int
	previousThread []ChatMessage
}

func (a *multiToolAgent) Reduce(_ context.Context, childBatches [][]*CompressedTask) error {
	n := 0
	for _, batch := range childBatches {
		n += len(batch)
	}
	a.childCount = n
	return nil
}

func (a *multiToolAgent) Run(ctx context.Context) (any, error) {
	if a.previousThread != nil {
		return strconv.Itoa(len(a.previousThread)), nil
	}
	if a.childCount == 0 {
		if err := a.handle.Dispatch(ctx, a,
			AgentCall{Agent: "UserInputTool"},
			AgentCall{Agent: "UserInputToolBackend"},
		); err != nil {
			return nil, err
		}
	}
	return "All tools completed", nil
}

// --- Provider stub (shared by retry_test.go, ratelimit_test.go) ---

// stubLLM returns pre-configured results in order. Tokens, when present,
// are delivered through the request's OnContent callback before the
// result is returned.
type stubLLM struct {
	calls   int
	results []stubResult
}

type stubResult struct {
	resp   *LLMResponse
	tokens []string
	err    error
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) next() stubResult {
	i := s.calls
	s.calls++
	if i < len(s.results) {
		return s.results[i]
	}
	return stubResult{}
}

func (s *stubLLM) Complete(_ context.Context, req CompletionRequest) (*LLMResponse, error) {
	r := s.next()
	for _, tok := range r.tokens {
		if req.OnContent != nil {
			req.OnContent(tok, "call_stub")
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.resp == nil {
		return &LLMResponse{}, nil
	}
	return r.resp, nil
}

var _ Provider = (*stubLLM)(nil)

// --- Log entry builders ---

func ptr[T any](v T) *T { return &v }

func taskEntry(id, agent, runID string, parent *string, args map[string]any) *Task {
	if args == nil {
		args = map[string]any{}
	}
	return &Task{
		Type:           EntryTask,
		ParentUniqueID: parent,
		RunID:          runID,
		Agent:          agent,
		Args:           args,
		UniqueID:       id,
		CreatedAt:      nowISO(),
	}
}

func resultEntry(taskID string, result any) *TaskResult {
	return &TaskResult{
		Type:         EntryTaskResult,
		TaskUniqueID: taskID,
		Result:       result,
		CreatedAt:    nowISO(),
	}
}

func debugEntry(taskID string, duration float64, llm ...*LLMDebug) *TaskDebugEntry {
	return &TaskDebugEntry{
		Type:         EntryTaskDebug,
		TaskUniqueID: taskID,
		Duration:     duration,
		LLMDebug:     llm,
		CreatedAt:    nowISO(),
	}
}
