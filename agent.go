package minusx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sync"
)

// nopLogger is a logger that discards all output. Used when no logger is set.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Agent is a unit of work executed against one task. The orchestrator
// instantiates a fresh Agent per execution phase, calls Reduce with the
// task's child batches, then Run. Run returns the task's result, or a
// [UserInputError] when the task must wait for the client.
type Agent interface {
	// Reduce folds completed child batches into the agent's state. It is
	// called before every Run, including on resume, and must be idempotent
	// with respect to batches it has already seen.
	Reduce(ctx context.Context, childBatches [][]*CompressedTask) error
	// Run executes the task and returns its result.
	Run(ctx context.Context) (any, error)
}

// AgentCall names an agent to run with its arguments. UniqueID is optional
// (the orchestrator generates one); Error, when set, records that error
// string as the task's result instead of executing it.
type AgentCall struct {
	Agent    string
	Args     map[string]any
	UniqueID string
	Error    string
}

// TaskHandle ties an agent instance to its task and orchestrator, giving
// it the ability to dispatch children and inspect their results.
type TaskHandle struct {
	UniqueID     string
	Orchestrator *Orchestrator
}

// Dispatch runs calls as a child batch of this task, waits for them to
// settle, then replays all child batches through a.Reduce. A
// [UserInputError] from any child propagates before Reduce is reinvoked.
func (h TaskHandle) Dispatch(ctx context.Context, a Agent, calls ...AgentCall) error {
	if err := h.Orchestrator.Run(ctx, calls, &h.UniqueID, nil); err != nil {
		return err
	}
	children, err := h.Orchestrator.Children(h.UniqueID)
	if err != nil {
		return err
	}
	return a.Reduce(ctx, children)
}

// Children returns this task's children, grouped into dispatch batches.
func (h TaskHandle) Children() ([][]*CompressedTask, error) {
	return h.Orchestrator.Children(h.UniqueID)
}

// --- Agent registry ---

// ParamSpec declares one constructor parameter of a registered agent.
// Type holds a JSON-schema fragment for the LLM function descriptor; nil
// means {"type": "string"}. DefaultFunc takes precedence over Default for
// optional parameters, so mutable defaults are built fresh per call.
type ParamSpec struct {
	Name        string
	Description string
	Type        map[string]any
	Required    bool
	Default     any
	DefaultFunc func() any
}

// AgentSpec describes a registered agent: its callable schema and its
// constructor.
type AgentSpec struct {
	Name        string
	Description string
	Params      []ParamSpec
	New         func(h TaskHandle, args map[string]any) (Agent, error)
}

// ToolSchema renders the function descriptor sent to the LLM, in the
// chat-completions tools shape. Every declared parameter is listed as
// required; defaults are applied by the orchestrator at dispatch, not
// advertised to the model.
func (s *AgentSpec) ToolSchema() map[string]any {
	props := make(map[string]any, len(s.Params))
	required := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		schema := map[string]any{"type": "string"}
		if p.Type != nil {
			schema = maps.Clone(p.Type)
		}
		if p.Description != "" {
			schema["description"] = p.Description
		}
		props[p.Name] = schema
		required = append(required, p.Name)
	}
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        s.Name,
			"description": s.Description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": props,
				"required":   required,
			},
		},
	}
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*AgentSpec)
)

// Register makes an agent available for dispatch by name. Registering the
// same name again replaces the previous spec.
func Register(spec *AgentSpec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[spec.Name] = spec
}

// LookupAgent resolves a registered agent by name.
func LookupAgent(name string) (*AgentSpec, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	spec, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("agent %q not found", name)
	}
	return spec, nil
}

// normalizeArgs applies declared defaults to a copy of args and reports
// required parameters that are absent. The input map is not modified.
func normalizeArgs(spec *AgentSpec, args map[string]any) (map[string]any, []string) {
	normalized := make(map[string]any, len(args)+len(spec.Params))
	maps.Copy(normalized, args)
	var missing []string
	for _, p := range spec.Params {
		if _, ok := normalized[p.Name]; ok {
			continue
		}
		switch {
		case p.DefaultFunc != nil:
			normalized[p.Name] = p.DefaultFunc()
		case !p.Required:
			normalized[p.Name] = p.Default
		default:
			missing = append(missing, p.Name)
		}
	}
	return normalized, missing
}

// --- Client tools ---

// ClientTool is an Agent whose execution happens on the client. Run always
// suspends; the result arrives in a later request as a completed tool call
// appended to the log.
type ClientTool struct {
	Handle TaskHandle
}

func (t *ClientTool) Reduce(ctx context.Context, childBatches [][]*CompressedTask) error {
	return nil
}

func (t *ClientTool) Run(ctx context.Context) (any, error) {
	return nil, SuspendTask(t.Handle.UniqueID)
}

// NewClientToolSpec builds the AgentSpec for a tool executed on the client.
func NewClientToolSpec(name, description string, params []ParamSpec) *AgentSpec {
	return &AgentSpec{
		Name:        name,
		Description: description,
		Params:      params,
		New: func(h TaskHandle, args map[string]any) (Agent, error) {
			return &ClientTool{Handle: h}, nil
		},
	}
}

// AgentTalkToUser is the reserved agent that carries assistant prose to
// the user. The thread translator prepends it for any assistant content,
// so its name is part of the protocol.
const AgentTalkToUser = "TalkToUser"

// AgentWebSearch names tasks recorded for provider-native web search. They
// never execute locally and stay out of the thread sent back to the LLM.
const AgentWebSearch = "web_search"

// TalkToUser completes server side: the content already streamed to the
// client, so Run just echoes the blocks back as the result.
type TalkToUser struct {
	Content       string
	Citations     []any
	ContentBlocks []any
}

func (t *TalkToUser) Reduce(ctx context.Context, childBatches [][]*CompressedTask) error {
	return nil
}

func (t *TalkToUser) Run(ctx context.Context) (any, error) {
	var payload map[string]any
	if len(t.ContentBlocks) > 0 {
		payload = map[string]any{"success": true, "content_blocks": t.ContentBlocks}
	} else {
		citations := t.Citations
		if citations == nil {
			citations = []any{}
		}
		payload = map[string]any{"success": true, "content": t.Content, "citations": citations}
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return string(out), nil
}

// TalkToUserSpec returns the registration spec for [TalkToUser].
func TalkToUserSpec() *AgentSpec {
	return &AgentSpec{
		Name:        AgentTalkToUser,
		Description: "Send a message to the user.",
		Params: []ParamSpec{
			{Name: "content", Default: ""},
			{Name: "citations", Type: map[string]any{"type": "array"}, DefaultFunc: func() any { return []any{} }},
			{Name: "content_blocks", Type: map[string]any{"type": "array"}, DefaultFunc: func() any { return []any{} }},
		},
		New: func(h TaskHandle, args map[string]any) (Agent, error) {
			t := &TalkToUser{}
			if s, ok := args["content"].(string); ok {
				t.Content = s
			}
			if v, ok := args["citations"].([]any); ok {
				t.Citations = v
			}
			if v, ok := args["content_blocks"].([]any); ok {
				t.ContentBlocks = v
			}
			return t, nil
		},
	}
}

// compile-time checks
var (
	_ Agent = (*ClientTool)(nil)
	_ Agent = (*TalkToUser)(nil)
)
