package minusx

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

const sampleLog = `[
  {"_type": "task", "_parent_unique_id": null, "_previous_unique_id": null,
   "_run_id": "mxgen_aaaaaaaaaaaaaaaaaaaaaaaa", "agent": "AnalystAgent",
   "args": {"goal": "show revenue by month"},
   "unique_id": "mxgen_bbbbbbbbbbbbbbbbbbbbbbbb",
   "created_at": "2026-08-25T10:00:00.000000+00:00"},
  {"_type": "task", "_parent_unique_id": "mxgen_bbbbbbbbbbbbbbbbbbbbbbbb",
   "_previous_unique_id": null, "_run_id": "mxgen_cccccccccccccccccccccccc",
   "agent": "ExecuteSQLQuery", "args": {"sql": "select 1"},
   "unique_id": "mxgen_dddddddddddddddddddddddd",
   "created_at": "2026-08-25T10:00:01.000000+00:00"},
  {"_type": "task_result", "_task_unique_id": "mxgen_dddddddddddddddddddddddd",
   "result": "1 row", "created_at": "2026-08-25T10:00:02.000000+00:00"},
  {"_type": "task_debug", "_task_unique_id": "mxgen_dddddddddddddddddddddddd",
   "duration": 0.42, "llmDebug": [], "created_at": "2026-08-25T10:00:02.000000+00:00"}
]`

func TestLogUnmarshal(t *testing.T) {
	var log Log
	if err := json.Unmarshal([]byte(sampleLog), &log); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(log) != 4 {
		t.Fatalf("got %d entries, want 4", len(log))
	}

	root, ok := log[0].(*Task)
	if !ok {
		t.Fatalf("entry 0 is %T, want *Task", log[0])
	}
	if root.ParentUniqueID != nil {
		t.Errorf("root parent = %v, want nil", *root.ParentUniqueID)
	}
	if root.Agent != "AnalystAgent" {
		t.Errorf("root agent = %q, want %q", root.Agent, "AnalystAgent")
	}
	if root.Args["goal"] != "show revenue by month" {
		t.Errorf("root goal = %v", root.Args["goal"])
	}

	child, ok := log[1].(*Task)
	if !ok {
		t.Fatalf("entry 1 is %T, want *Task", log[1])
	}
	if child.ParentUniqueID == nil || *child.ParentUniqueID != root.UniqueID {
		t.Errorf("child parent = %v, want %q", child.ParentUniqueID, root.UniqueID)
	}

	result, ok := log[2].(*TaskResult)
	if !ok {
		t.Fatalf("entry 2 is %T, want *TaskResult", log[2])
	}
	if result.TaskUniqueID != child.UniqueID {
		t.Errorf("result task id = %q, want %q", result.TaskUniqueID, child.UniqueID)
	}
	if result.Result != "1 row" {
		t.Errorf("result = %v, want %q", result.Result, "1 row")
	}

	debug, ok := log[3].(*TaskDebugEntry)
	if !ok {
		t.Fatalf("entry 3 is %T, want *TaskDebugEntry", log[3])
	}
	if debug.Duration != 0.42 {
		t.Errorf("debug duration = %v, want 0.42", debug.Duration)
	}
}

func TestLogRoundTrip(t *testing.T) {
	var log Log
	if err := json.Unmarshal([]byte(sampleLog), &log); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(log)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var want, got []map[string]any
	if err := json.Unmarshal([]byte(sampleLog), &want); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip changed entries:\ngot  %v\nwant %v", got, want)
	}
}

func TestLogUnmarshal_SkipsUnknownType(t *testing.T) {
	raw := `[
	  {"_type": "task", "_run_id": "r", "agent": "DefaultAgent", "args": {},
	   "unique_id": "t1", "created_at": "2026-08-25T10:00:00.000000+00:00"},
	  {"_type": "telemetry", "payload": 1},
	  {"no_type_at_all": true},
	  {"_type": "task_result", "_task_unique_id": "t1", "result": "ok",
	   "created_at": "2026-08-25T10:00:01.000000+00:00"}
	]`
	var log Log
	if err := json.Unmarshal([]byte(raw), &log); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("got %d entries, want 2 (unknown kinds skipped)", len(log))
	}
	if _, ok := log[0].(*Task); !ok {
		t.Errorf("entry 0 is %T, want *Task", log[0])
	}
	if _, ok := log[1].(*TaskResult); !ok {
		t.Errorf("entry 1 is %T, want *TaskResult", log[1])
	}
}

func TestLogMarshal_NilIsEmptyArray(t *testing.T) {
	out, err := json.Marshal(Log(nil))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "[]" {
		t.Errorf("got %s, want []", out)
	}
}

func TestNowISO(t *testing.T) {
	s := nowISO()
	if !strings.HasSuffix(s, "+00:00") {
		t.Errorf("timestamp %q does not carry a +00:00 offset", s)
	}
	if _, err := time.Parse("2006-01-02T15:04:05.000000Z07:00", s); err != nil {
		t.Errorf("timestamp %q does not parse: %v", s, err)
	}
}
