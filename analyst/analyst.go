package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	minusx "github.com/minusxai/minusx"
)

// Registered agent names.
const (
	AgentAnalyst = "AnalystAgent"
	AgentReport  = "ReportAgent"
)

const (
	defaultMaxSteps = 35
	// reservedSteps is held back from the tool budget so the loop can
	// still close with a plain answer once tools are withdrawn.
	reservedSteps = 5
)

// Config wires the analyst agents to an LLM provider.
type Config struct {
	// Provider handles chat completions for the loop and for report
	// synthesis.
	Provider minusx.Provider
	// Model names the chat model sent with every request.
	Model string
	// MaxSteps caps the analyst tool loop. Zero means 35.
	MaxSteps int
}

// Register installs the conversational agents and every client tool into
// the dispatch registry.
func Register(cfg Config) {
	minusx.Register(minusx.TalkToUserSpec())
	for _, spec := range clientToolSpecs() {
		minusx.Register(spec)
	}
	minusx.Register(AnalystSpec(cfg))
	minusx.Register(ReportSpec(cfg))
}

// AnalystSpec returns the registration spec for the conversational
// analyst.
func AnalystSpec(cfg Config) *minusx.AgentSpec {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	return &minusx.AgentSpec{
		Name:        AgentAnalyst,
		Description: "Conversational data analyst that works on a goal with the client toolset.",
		Params: []minusx.ParamSpec{
			{Name: "goal", Description: "the task or question to work on", Required: true},
			{Name: "connection_id", Description: "database connection to analyze", Default: "No connection"},
			{Name: "schema", Type: map[string]any{"type": "array"}, Description: "warehouse schema snapshot for the connection", DefaultFunc: func() any { return []any{} }},
			{Name: "context", Description: "workspace context supplied by the client", Default: ""},
			{Name: "app_state", Type: map[string]any{"type": "object"}, Description: "state of the page the user is on", DefaultFunc: func() any { return map[string]any{} }},
			{Name: "home_folder", Description: "the user's home folder path", Default: "/"},
			{Name: "city", Description: "user's city for location-aware answers", Default: ""},
			{Name: "agent_name", Description: "name the agent goes by in prompts", Default: "MinusX"},
			{Name: "toolset", Description: "client toolset to expose: 'classic' or 'native'", Default: ToolsetClassic},
		},
		New: func(h minusx.TaskHandle, args map[string]any) (minusx.Agent, error) {
			return &AnalystAgent{
				handle:       h,
				provider:     cfg.Provider,
				model:        cfg.Model,
				maxSteps:     maxSteps,
				goal:         stringArg(args, "goal"),
				connectionID: stringArg(args, "connection_id"),
				schema:       listValue(args["schema"]),
				context:      stringArg(args, "context"),
				appState:     mapValue(args["app_state"]),
				homeFolder:   stringArg(args, "home_folder"),
				city:         stringArg(args, "city"),
				agentName:    stringArg(args, "agent_name"),
				toolset:      stringArg(args, "toolset"),
			}, nil
		},
	}
}

// AnalystAgent runs the tool loop: it prompts the model with the goal,
// prior conversation turns, and warehouse context, dispatches the tool
// calls the model makes, and folds the results back into the thread until
// the model stops or the step budget runs out.
type AnalystAgent struct {
	handle   minusx.TaskHandle
	provider minusx.Provider
	model    string
	maxSteps int

	goal         string
	connectionID string
	schema       []any
	context      string
	appState     map[string]any
	homeFolder   string
	city         string
	agentName    string
	toolset      string

	// toolThread accumulates the assistant/tool exchange for this task.
	// Its length doubles as the step counter.
	toolThread []minusx.ChatMessage
	childCount int
}

// Reduce appends messages for child batches this instance has not folded
// in yet. Replays of earlier batches are skipped so Dispatch's full
// replay stays idempotent.
func (a *AnalystAgent) Reduce(ctx context.Context, childBatches [][]*minusx.CompressedTask) error {
	for _, batch := range childBatches[a.childCount:] {
		a.toolThread = append(a.toolThread, minusx.TaskBatchToThread([][]*minusx.CompressedTask{batch})...)
	}
	a.childCount = len(childBatches)
	return nil
}

func (a *AnalystAgent) Run(ctx context.Context) (any, error) {
	base := []minusx.ChatMessage{a.systemMessage()}
	base = append(base, a.history()...)
	base = append(base, a.userMessage())

	for len(a.toolThread) < a.maxSteps {
		tools, err := a.availableTools()
		if err != nil {
			return nil, err
		}

		messages := make([]minusx.ChatMessage, 0, len(base)+len(a.toolThread))
		messages = append(messages, base...)
		messages = append(messages, a.toolThread...)

		req := minusx.CompletionRequest{
			Messages: messages,
			Settings: &minusx.LLMSettings{
				Model:            a.model,
				ResponseFormat:   map[string]any{"type": "text"},
				ToolChoice:       minusx.ToolChoiceAuto,
				IncludeWebSearch: true,
			},
			Tools: tools,
		}
		if a.city != "" {
			req.UserInfo = &minusx.UserInfo{City: a.city}
		}
		if a.handle.Orchestrator != nil {
			req.OnContent = a.handle.Orchestrator.ContentCallback()
		}

		resp, err := a.provider.Complete(ctx, req)
		if err != nil {
			return nil, err
		}

		if resp.FinishReason == "stop" {
			result := map[string]any{"success": true}
			if resp.Content != "" {
				result["content"] = resp.Content
				citations := resp.Citations
				if citations == nil {
					citations = []any{}
				}
				result["citations"] = citations
			}
			return result, nil
		}

		calls := minusx.ToolCallsToAgentCalls(resp.ToolCalls, resp.Content, resp.Citations, resp.ContentBlocks)
		if len(calls) == 0 {
			continue
		}
		if err := a.handle.Dispatch(ctx, a, calls...); err != nil {
			return nil, err
		}
	}

	return map[string]any{
		"success": false,
		"content": fmt.Sprintf("Maximum iterations (%d) reached. Please try a simpler query.", a.maxSteps),
	}, nil
}

// availableTools returns the toolset's function descriptors, or none once
// the thread is close enough to the cap that the model must wrap up.
func (a *AnalystAgent) availableTools() ([]map[string]any, error) {
	if len(a.toolThread) >= a.maxSteps-reservedSteps {
		return nil, nil
	}
	names := classicTools
	if a.toolset == ToolsetNative {
		names = nativeTools
	}
	return toolSchemas(names)
}

// history renders prior root tasks of this conversation as chat turns,
// oldest first.
func (a *AnalystAgent) history() []minusx.ChatMessage {
	if a.handle.Orchestrator == nil {
		return nil
	}
	roots := a.handle.Orchestrator.PreviousRootTasks()
	slices.Reverse(roots)
	return minusx.RootTasksToThread(roots, a.handle.Orchestrator)
}

func (a *AnalystAgent) systemMessage() minusx.ChatMessage {
	schemaJSON := "[]"
	if len(a.schema) > 0 {
		if raw, err := json.Marshal(a.schema); err == nil {
			schemaJSON = string(raw)
		}
	}
	tpl := classicSystemPrompt
	if a.toolset == ToolsetNative {
		tpl = nativeSystemPrompt
	}
	return minusx.NewSystemMessage(fmt.Sprintf(tpl,
		a.agentName, a.connectionID, schemaJSON, a.context, a.homeFolder, a.maxSteps-reservedSteps))
}

func (a *AnalystAgent) userMessage() minusx.ChatMessage {
	appState := "null"
	if len(a.appState) > 0 {
		if raw, err := json.MarshalIndent(a.appState, "", "  "); err == nil {
			appState = string(raw)
		}
	}
	now := time.Now().Format("2006-01-02 15:04:05")
	return minusx.NewUserMessage(fmt.Sprintf(analystUserPrompt, appState, now, a.goal))
}

// --- argument coercion ---

// stringArg reads a string argument, tolerating absent or mistyped
// values.
func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg reads an integer argument. JSON numbers arrive as float64.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}

// listValue coerces a value to a JSON array.
func listValue(v any) []any {
	l, _ := v.([]any)
	return l
}

// mapValue coerces a value to a JSON object.
func mapValue(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// stringList extracts the string elements of a JSON array.
func stringList(v any) []string {
	var out []string
	for _, e := range listValue(v) {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// truncate cuts s to at most n bytes.
func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// nowUTC formats the current time the way task log timestamps are
// written.
func nowUTC() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "+00:00"
}

var _ minusx.Agent = (*AnalystAgent)(nil)
