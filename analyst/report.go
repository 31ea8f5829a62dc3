package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	minusx "github.com/minusxai/minusx"
)

const reportAnalysisGoal = `[%s]%s

IMPORTANT: Use foreground=false for ALL ExecuteSQLQuery calls - this is a background report execution. Use this to execute SQL queries from the app_state, or any other necessary query.`

const reportWriterSystemPrompt = "You are an expert report writer who synthesizes data analyses into clear, actionable reports."

const defaultSynthesisInstructions = "Synthesize the analyses into a coherent executive summary. Highlight key findings, trends, and actionable insights."

const reportSynthesisPrompt = `You are generating a report based on multiple data analyses.

## Report: %s

## Individual Analyses:
%s

## Available Interactive Charts
You can embed interactive charts in your report using the syntax ` + "`{{query:TOOL_CALL_ID}}`" + `.
When you embed a chart, the frontend will render an interactive visualization that users can explore.

Available queries:
%s

**IMPORTANT**: Use ` + "`{{query:ID}}`" + ` syntax to embed charts inline in your report. This will render as an interactive visualization.
Example: "Here's the revenue breakdown: {{query:mxgen_abc123}}"

## Synthesis Instructions:
%s

## Your Task:
Generate a well-structured markdown report that synthesizes all the analyses above. Include:
1. An executive summary
2. Key findings from each analysis with embedded charts where appropriate
3. Overall insights and recommendations

Format as clean markdown. Use the ` + "`{{query:ID}}`" + ` syntax to embed relevant charts inline.`

// ReportSpec returns the registration spec for the report runner.
func ReportSpec(cfg Config) *minusx.AgentSpec {
	return &minusx.AgentSpec{
		Name:        AgentReport,
		Description: "Runs a report: analyzes every referenced question or dashboard, then synthesizes the results into one document.",
		Params: []minusx.ParamSpec{
			{Name: "report_id", Type: map[string]any{"type": "integer"}, Description: "file ID of the report", Required: true},
			{Name: "report_name", Description: "display name of the report", Default: "Untitled Report"},
			{Name: "references", Type: map[string]any{"type": "array"}, Description: "questions and dashboards to analyze, each with a prompt and app state", DefaultFunc: func() any { return []any{} }},
			{Name: "report_prompt", Description: "overall synthesis instructions", Default: ""},
			{Name: "emails", Type: map[string]any{"type": "array", "items": map[string]any{"type": "string"}}, Description: "delivery email list", DefaultFunc: func() any { return []any{} }},
			{Name: "connection_id", Description: "fallback connection for references that name none", Default: ""},
			{Name: "schema", Type: map[string]any{"type": "array"}, Description: "warehouse schema snapshot passed through to analysts", DefaultFunc: func() any { return []any{} }},
			{Name: "context", Description: "workspace context passed through to analysts", Default: ""},
			{Name: "home_folder", Description: "home folder passed through to analysts", Default: "/"},
		},
		New: func(h minusx.TaskHandle, args map[string]any) (minusx.Agent, error) {
			homeFolder := stringArg(args, "home_folder")
			if homeFolder == "" {
				homeFolder = "/"
			}
			var refs []map[string]any
			for _, e := range listValue(args["references"]) {
				if m, ok := e.(map[string]any); ok {
					refs = append(refs, m)
				}
			}
			return &ReportAgent{
				handle:       h,
				provider:     cfg.Provider,
				model:        cfg.Model,
				reportID:     intArg(args, "report_id"),
				reportName:   stringArg(args, "report_name"),
				references:   refs,
				reportPrompt: stringArg(args, "report_prompt"),
				emails:       stringList(args["emails"]),
				connectionID: stringArg(args, "connection_id"),
				schema:       listValue(args["schema"]),
				context:      stringArg(args, "context"),
				homeFolder:   homeFolder,
				queries:      map[string]any{},
				startedAt:    nowUTC(),
			}, nil
		},
	}
}

// ReportAgent executes a report in two phases. The first dispatches one
// analyst per reference and leaves the task pending while they work. Once
// every analysis settles, a resumed instance folds the results in through
// Reduce and synthesizes the final document with a second LLM pass.
type ReportAgent struct {
	handle   minusx.TaskHandle
	provider minusx.Provider
	model    string

	reportID     int
	reportName   string
	references   []map[string]any
	reportPrompt string
	emails       []string
	connectionID string
	schema       []any
	context      string
	homeFolder   string

	childResults []map[string]any
	// queries maps ExecuteSQLQuery call IDs to their harvested result
	// entries; queryOrder preserves first-seen order for the synthesis
	// prompt.
	queries    map[string]any
	queryOrder []string
	startedAt  string
}

// referenceInfo carries the source file identity attached to harvested
// queries.
type referenceInfo struct {
	fileID   any
	fileName string
}

// Reduce collects each analyst's result and harvests every successful
// ExecuteSQLQuery under it. Batch order follows reference order, so batch
// i is attributed to reference i.
func (r *ReportAgent) Reduce(ctx context.Context, childBatches [][]*minusx.CompressedTask) error {
	for i, batch := range childBatches {
		var info *referenceInfo
		if i < len(r.references) {
			ref := r.references[i]
			info = &referenceInfo{
				fileID:   mapValue(ref["reference"])["id"],
				fileName: refString(ref, "file_name", fmt.Sprintf("Reference %d", i+1)),
			}
		}
		for _, task := range batch {
			r.collectQueries(task, info)
			if task.Result != nil {
				r.childResults = append(r.childResults, map[string]any{
					"unique_id": task.UniqueID,
					"result":    task.Result,
				})
			}
		}
	}
	return nil
}

// collectQueries walks a task tree and records every successful
// ExecuteSQLQuery result that returned data.
func (r *ReportAgent) collectQueries(task *minusx.CompressedTask, info *referenceInfo) {
	if task == nil {
		return
	}
	if task.Agent == "ExecuteSQLQuery" && task.Result != nil {
		parsed := map[string]any{}
		switch res := task.Result.(type) {
		case string:
			if err := json.Unmarshal([]byte(res), &parsed); err != nil {
				parsed = map[string]any{}
			}
		case map[string]any:
			parsed = res
		}

		if truthy(parsed["success"]) && truthy(parsed["columns"]) {
			viz := map[string]any{"type": "table"}
			if v := task.Args["vizSettings"]; truthy(v) {
				switch vs := v.(type) {
				case string:
					var m map[string]any
					if err := json.Unmarshal([]byte(vs), &m); err == nil && m != nil {
						viz = m
					}
				case map[string]any:
					viz = vs
				}
			}

			var fileID, fileName any
			if info != nil {
				fileID = info.fileID
				fileName = info.fileName
			}
			if _, seen := r.queries[task.UniqueID]; !seen {
				r.queryOrder = append(r.queryOrder, task.UniqueID)
			}
			r.queries[task.UniqueID] = map[string]any{
				"query":        stringArg(task.Args, "query"),
				"columns":      valueOr(parsed, "columns", []any{}),
				"types":        valueOr(parsed, "types", []any{}),
				"rows":         valueOr(parsed, "rows", []any{}),
				"vizSettings":  viz,
				"connectionId": task.Args["connection_id"],
				"fileId":       fileID,
				"fileName":     fileName,
			}
		}
	}

	if r.handle.Orchestrator == nil {
		return
	}
	conv := r.handle.Orchestrator.Compressed()
	for _, group := range task.ChildUniqueIDs {
		for _, id := range group {
			if child := conv.Task(id); child != nil {
				r.collectQueries(child, info)
			}
		}
	}
}

// Run executes the current phase. Any failure except a suspension becomes
// a failed run payload so the scheduler always receives a record.
func (r *ReportAgent) Run(ctx context.Context) (any, error) {
	result, err := r.execute(ctx)
	if err != nil {
		if minusx.IsUserInput(err) {
			return nil, err
		}
		return r.failureResult(err), nil
	}
	return result, nil
}

func (r *ReportAgent) execute(ctx context.Context) (any, error) {
	if len(r.references) > 0 && len(r.childResults) == 0 {
		calls := make([]minusx.AgentCall, 0, len(r.references))
		for i, ref := range r.references {
			prompt := refString(ref, "prompt", "Analyze this data")
			fileName := refString(ref, "file_name", fmt.Sprintf("Reference %d", i+1))
			refConn := refString(ref, "connection_id", "")
			if refConn == "" {
				refConn = r.connectionID
			}
			appState := mapValue(ref["app_state"])
			if appState == nil {
				appState = map[string]any{}
			}
			calls = append(calls, minusx.AgentCall{
				Agent: AgentAnalyst,
				Args: map[string]any{
					"goal":          fmt.Sprintf(reportAnalysisGoal, fileName, prompt),
					"connection_id": refConn,
					"schema":        r.schema,
					"context":       r.context,
					"app_state":     appState,
					"home_folder":   r.homeFolder,
					"agent_name":    "ReportAnalyst",
				},
			})
		}
		if err := r.handle.Dispatch(ctx, r, calls...); err != nil {
			return nil, err
		}
		// Children completed without suspending; a resumed instance
		// synthesizes once their batches are folded in.
		return nil, nil
	}

	report, err := r.synthesize(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success": true,
		"content": fmt.Sprintf("Report '%s' executed successfully.", r.reportName),
		"run": map[string]any{
			"reportId":        r.reportID,
			"reportName":      r.reportName,
			"startedAt":       r.startedAt,
			"completedAt":     nowUTC(),
			"status":          "success",
			"steps":           []any{map[string]any{"name": "analysis", "outputs": len(r.childResults)}},
			"generatedReport": report,
			"queries":         r.queries,
			"error":           nil,
		},
	}, nil
}

func (r *ReportAgent) failureResult(cause error) map[string]any {
	return map[string]any{
		"success": false,
		"content": fmt.Sprintf("Report execution failed: %v", cause),
		"run": map[string]any{
			"reportId":        r.reportID,
			"reportName":      r.reportName,
			"startedAt":       r.startedAt,
			"completedAt":     nowUTC(),
			"status":          "failed",
			"steps":           []any{},
			"generatedReport": nil,
			"error":           cause.Error(),
		},
	}
}

// synthesize renders the collected analyses and queries into a prompt and
// asks the model for the final report body.
func (r *ReportAgent) synthesize(ctx context.Context) (string, error) {
	analyses := make([]string, 0, len(r.references))
	for i, ref := range r.references {
		fileName := refString(ref, "file_name", fmt.Sprintf("Reference %d", i+1))
		prompt := refString(ref, "prompt", "")

		resultContent := ""
		if i < len(r.childResults) {
			switch res := r.childResults[i]["result"].(type) {
			case nil:
			case map[string]any:
				if c, ok := res["content"]; ok {
					resultContent = fmt.Sprintf("%v", c)
				} else {
					resultContent = fmt.Sprintf("%v", res)
				}
			default:
				resultContent = fmt.Sprintf("%v", res)
			}
		}
		analyses = append(analyses, fmt.Sprintf("### %s\n**Prompt:** %s\n**Analysis:**\n%s", fileName, prompt, resultContent))
	}

	var queryLines []string
	for _, id := range r.queryOrder {
		q := mapValue(r.queries[id])
		if q == nil {
			continue
		}
		name := "Query"
		if s, ok := q["fileName"].(string); ok && s != "" {
			name = s
		}
		vizType := "table"
		if s, ok := mapValue(q["vizSettings"])["type"].(string); ok {
			vizType = s
		}
		queryLines = append(queryLines, fmt.Sprintf("- `{{query:%s}}`: %s (%d rows, %s) - `%s...`",
			id, name, len(listValue(q["rows"])), vizType, truncate(stringArg(q, "query"), 100)))
	}
	queriesText := strings.Join(queryLines, "\n")
	if queriesText == "" {
		queriesText = "No queries available"
	}

	instructions := r.reportPrompt
	if instructions == "" {
		instructions = defaultSynthesisInstructions
	}

	resp, err := r.provider.Complete(ctx, minusx.CompletionRequest{
		Messages: []minusx.ChatMessage{
			minusx.NewSystemMessage(reportWriterSystemPrompt),
			minusx.NewUserMessage(fmt.Sprintf(reportSynthesisPrompt,
				r.reportName, strings.Join(analyses, "\n\n"), queriesText, instructions)),
		},
		Settings: &minusx.LLMSettings{
			Model:          r.model,
			ResponseFormat: map[string]any{"type": "text"},
		},
	})
	if err != nil {
		return "", err
	}

	report := fmt.Sprintf("# %s\n\n*Generated at %s*\n\n%s\n",
		r.reportName, time.Now().UTC().Format("2006-01-02 15:04:05")+" UTC", resp.Content)
	if len(r.emails) > 0 {
		report += fmt.Sprintf("\n---\n*This report will be sent to: %s*", strings.Join(r.emails, ", "))
	}
	return report, nil
}

// valueOr reads a key from a parsed result, falling back when absent.
func valueOr(m map[string]any, key string, fallback any) any {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

// refString reads a string field from a reference, with a fallback for
// absent or non-string values.
func refString(ref map[string]any, key, fallback string) string {
	if s, ok := ref[key].(string); ok {
		return s
	}
	return fallback
}

var _ minusx.Agent = (*ReportAgent)(nil)
