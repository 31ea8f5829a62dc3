package analyst

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	minusx "github.com/minusxai/minusx"
)

// reportFixtureLog is a mid-flight report run: the report task is still
// pending, its analyst child has finished, and the analyst's SQL call
// carries a chartable result.
func reportFixtureLog() minusx.Log {
	return minusx.Log{
		taskEntry("task_report", AgentReport, "run_0", nil, map[string]any{
			"report_id":   float64(7),
			"report_name": "Weekly Revenue",
			"references": []any{map[string]any{
				"reference":     map[string]any{"id": float64(42), "type": "question"},
				"file_name":     "Revenue by Region",
				"prompt":        "Analyze revenue",
				"connection_id": "conn_1",
				"app_state":     map[string]any{"page": "question"},
			}},
			"emails": []any{"a@x.com", "b@x.com"},
		}),
		taskEntry("task_analyst_1", AgentAnalyst, "run_1", ptr("task_report"), map[string]any{
			"goal": "[Revenue by Region]Analyze revenue",
		}),
		resultEntry("task_analyst_1", map[string]any{"success": true, "content": "Revenue grew 10%."}),
		taskEntry("call_sql_1", "ExecuteSQLQuery", "run_2", ptr("task_analyst_1"), map[string]any{
			"query":         "SELECT region, revenue FROM sales",
			"connection_id": "conn_1",
			"vizSettings":   `{"type":"bar","xCols":["region"],"yCols":["revenue"]}`,
		}),
		resultEntry("call_sql_1",
			`{"success": true, "columns": ["region", "revenue"], "types": ["text", "number"], "rows": [["EMEA", 100]]}`),
	}
}

func TestReportReduceHarvest(t *testing.T) {
	p := &scriptProvider{}
	registerAnalyst(t, p)

	orch := minusx.NewOrchestrator(reportFixtureLog())
	handle := minusx.TaskHandle{UniqueID: "task_report", Orchestrator: orch}
	agent, err := ReportSpec(Config{Provider: p, Model: "claude-sonnet-4-6"}).
		New(handle, orch.Compressed().Task("task_report").Args)
	if err != nil {
		t.Fatal(err)
	}
	r := agent.(*ReportAgent)

	batches, err := handle.Children()
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Reduce(context.Background(), batches); err != nil {
		t.Fatal(err)
	}

	if len(r.childResults) != 1 || r.childResults[0]["unique_id"] != "task_analyst_1" {
		t.Fatalf("child results = %v", r.childResults)
	}
	if !reflect.DeepEqual(r.queryOrder, []string{"call_sql_1"}) {
		t.Fatalf("query order = %v", r.queryOrder)
	}
	q := r.queries["call_sql_1"].(map[string]any)
	if q["query"] != "SELECT region, revenue FROM sales" {
		t.Errorf("query = %v", q["query"])
	}
	if !reflect.DeepEqual(q["columns"], []any{"region", "revenue"}) {
		t.Errorf("columns = %v", q["columns"])
	}
	if len(q["rows"].([]any)) != 1 {
		t.Errorf("rows = %v", q["rows"])
	}
	if q["vizSettings"].(map[string]any)["type"] != "bar" {
		t.Errorf("vizSettings = %v", q["vizSettings"])
	}
	if q["connectionId"] != "conn_1" || q["fileId"] != float64(42) || q["fileName"] != "Revenue by Region" {
		t.Errorf("attribution = connectionId %v, fileId %v, fileName %v",
			q["connectionId"], q["fileId"], q["fileName"])
	}
}

func TestReportResumeSynthesis(t *testing.T) {
	p := &scriptProvider{fn: func(n int, req minusx.CompletionRequest) (*minusx.LLMResponse, error) {
		return stopResponse("## Summary\n\nRevenue looks strong: {{query:call_sql_1}}"), nil
	}}
	registerAnalyst(t, p)

	orch := minusx.NewOrchestrator(reportFixtureLog())
	if err := orch.Resume(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.callCount() != 1 {
		t.Fatalf("provider called %d times", p.callCount())
	}

	req := p.request(0)
	if len(req.Messages) != 2 {
		t.Fatalf("%d synthesis messages", len(req.Messages))
	}
	if req.Messages[0].Content != reportWriterSystemPrompt {
		t.Errorf("system = %v", req.Messages[0].Content)
	}
	user := req.Messages[1].Content.(string)
	for _, want := range []string{
		"## Report: Weekly Revenue",
		"### Revenue by Region",
		"**Prompt:** Analyze revenue",
		"Revenue grew 10%.",
		"- `{{query:call_sql_1}}`: Revenue by Region (1 rows, bar) - `SELECT region, revenue FROM sales...`",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("synthesis prompt missing %q", want)
		}
	}
	if req.Settings.Model != "claude-sonnet-4-6" || req.Settings.ResponseFormat["type"] != "text" {
		t.Errorf("settings = %+v", req.Settings)
	}

	result := orch.Compressed().Task("task_report").Result.(map[string]any)
	if result["success"] != true {
		t.Fatalf("result = %v", result)
	}
	if result["content"] != "Report 'Weekly Revenue' executed successfully." {
		t.Errorf("content = %q", result["content"])
	}
	run := result["run"].(map[string]any)
	if run["reportId"] != 7 || run["reportName"] != "Weekly Revenue" || run["status"] != "success" {
		t.Errorf("run = %v", run)
	}
	steps := run["steps"].([]any)
	if len(steps) != 1 {
		t.Fatalf("steps = %v", steps)
	}
	step := steps[0].(map[string]any)
	if step["name"] != "analysis" || step["outputs"] != 1 {
		t.Errorf("step = %v", step)
	}
	if run["error"] != nil {
		t.Errorf("error = %v", run["error"])
	}
	if _, ok := run["queries"].(map[string]any)["call_sql_1"]; !ok {
		t.Errorf("run queries = %v", run["queries"])
	}

	report := run["generatedReport"].(string)
	if !strings.HasPrefix(report, "# Weekly Revenue\n\n*Generated at ") {
		t.Errorf("report header = %q", report)
	}
	if !strings.Contains(report, "## Summary") {
		t.Errorf("report body missing synthesis content: %q", report)
	}
	if !strings.Contains(report, "\n---\n*This report will be sent to: a@x.com, b@x.com*") {
		t.Errorf("report missing delivery footer: %q", report)
	}
}

func TestReportPhaseOneDispatch(t *testing.T) {
	p := &scriptProvider{fn: func(n int, req minusx.CompletionRequest) (*minusx.LLMResponse, error) {
		if strings.Contains(req.Messages[0].Content.(string), "expert report writer") {
			return stopResponse("synthesis body"), nil
		}
		return stopResponse("analysis done"), nil
	}}
	registerAnalyst(t, p)

	orch := minusx.NewOrchestrator(nil)
	err := orch.Run(context.Background(), []minusx.AgentCall{{
		Agent:    AgentReport,
		UniqueID: "task_report",
		Args: map[string]any{
			"report_id":     float64(9),
			"report_name":   "Q3 Ops",
			"connection_id": "conn_main",
			"home_folder":   "/org",
			"references": []any{
				map[string]any{
					"reference": map[string]any{"id": float64(1), "type": "question"},
					"file_name": "Daily Actives",
					"prompt":    "Track DAU",
				},
				map[string]any{
					"reference":     map[string]any{"id": float64(2), "type": "dashboard"},
					"file_name":     "Churn Overview",
					"prompt":        "Summarize churn",
					"connection_id": "conn_b",
				},
			},
		},
	}}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Phase one leaves the report pending until a resume synthesizes.
	if orch.Compressed().Task("task_report").Result != nil {
		t.Fatal("report completed before synthesis")
	}

	handle := minusx.TaskHandle{UniqueID: "task_report", Orchestrator: orch}
	batches, err := handle.Children()
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("child batches = %v", batches)
	}
	first, second := batches[0][0], batches[0][1]
	if first.Agent != AgentAnalyst || second.Agent != AgentAnalyst {
		t.Fatalf("children = %s, %s", first.Agent, second.Agent)
	}
	goal := first.Args["goal"].(string)
	if !strings.HasPrefix(goal, "[Daily Actives]Track DAU") {
		t.Errorf("goal = %q", goal)
	}
	if !strings.Contains(goal, "IMPORTANT: Use foreground=false") {
		t.Errorf("goal missing background directive: %q", goal)
	}
	if first.Args["agent_name"] != "ReportAnalyst" || first.Args["home_folder"] != "/org" {
		t.Errorf("child args = %v", first.Args)
	}
	if first.Args["connection_id"] != "conn_main" {
		t.Errorf("fallback connection = %v", first.Args["connection_id"])
	}
	if second.Args["connection_id"] != "conn_b" {
		t.Errorf("reference connection = %v", second.Args["connection_id"])
	}

	if err := orch.Resume(context.Background()); err != nil {
		t.Fatal(err)
	}
	result := orch.Compressed().Task("task_report").Result.(map[string]any)
	if result["success"] != true {
		t.Fatalf("result = %v", result)
	}
	run := result["run"].(map[string]any)
	step := run["steps"].([]any)[0].(map[string]any)
	if step["outputs"] != 2 {
		t.Errorf("step = %v", step)
	}
	if !strings.Contains(run["generatedReport"].(string), "synthesis body") {
		t.Errorf("report = %v", run["generatedReport"])
	}
	if p.callCount() != 3 {
		t.Errorf("provider called %d times, want 2 analyses + 1 synthesis", p.callCount())
	}
}

func TestReportSynthesisFailure(t *testing.T) {
	p := &scriptProvider{fn: func(n int, req minusx.CompletionRequest) (*minusx.LLMResponse, error) {
		return nil, errors.New("boom")
	}}
	registerAnalyst(t, p)

	orch := minusx.NewOrchestrator(reportFixtureLog())
	if err := orch.Resume(context.Background()); err != nil {
		t.Fatal(err)
	}

	result := orch.Compressed().Task("task_report").Result.(map[string]any)
	if result["success"] != false {
		t.Fatalf("result = %v", result)
	}
	if result["content"] != "Report execution failed: boom" {
		t.Errorf("content = %q", result["content"])
	}
	run := result["run"].(map[string]any)
	if run["status"] != "failed" || run["error"] != "boom" {
		t.Errorf("run = %v", run)
	}
	if len(run["steps"].([]any)) != 0 {
		t.Errorf("steps = %v", run["steps"])
	}
	if run["generatedReport"] != nil {
		t.Errorf("generatedReport = %v", run["generatedReport"])
	}
	if _, ok := run["queries"]; ok {
		t.Error("failed run must not carry queries")
	}
}

func TestReportChildSuspension(t *testing.T) {
	p := &scriptProvider{fn: func(n int, req minusx.CompletionRequest) (*minusx.LLMResponse, error) {
		return toolCallResponse("call_sql_9", "ExecuteSQLQuery",
			`{"query":"SELECT 1","connection_id":"conn_1"}`), nil
	}}
	registerAnalyst(t, p)

	orch := minusx.NewOrchestrator(nil)
	err := orch.Run(context.Background(), []minusx.AgentCall{{
		Agent:    AgentReport,
		UniqueID: "task_report",
		Args: map[string]any{
			"report_id": float64(5),
			"references": []any{map[string]any{
				"reference": map[string]any{"id": float64(3), "type": "question"},
				"file_name": "Signups",
				"prompt":    "Count signups",
			}},
		},
	}}, nil, nil)

	var uie *minusx.UserInputError
	if !errors.As(err, &uie) {
		t.Fatalf("err = %v, want user-input suspension", err)
	}
	if !reflect.DeepEqual(uie.TaskIDs, []string{"call_sql_9"}) {
		t.Errorf("suspended ids = %v", uie.TaskIDs)
	}
	if orch.Compressed().Task("task_report").Result != nil {
		t.Fatal("report completed while a query is waiting on the client")
	}
}
