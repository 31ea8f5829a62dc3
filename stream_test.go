package minusx

import (
	"encoding/json"
	"testing"
)

func TestNewContentEvent(t *testing.T) {
	ev := NewContentEvent("del")
	if ev.Type != EventStreamedContent {
		t.Errorf("type = %q", ev.Type)
	}
	payload := ev.Payload.(map[string]any)
	if payload["chunk"] != "del" {
		t.Errorf("payload = %v", payload)
	}
}

func TestNewToolCreatedEvent(t *testing.T) {
	task := &CompressedTask{
		UniqueID: "sql_1",
		Agent:    "ExecuteSQLQuery",
		Args:     map[string]any{"sql": "select 1"},
	}
	ev := NewToolCreatedEvent(task)
	if ev.Type != EventToolCreated {
		t.Errorf("type = %q", ev.Type)
	}
	call := ev.Payload.(ToolCall)
	if call.ID != "sql_1" || call.Type != "function" {
		t.Errorf("call = %+v", call)
	}
	if call.Function.Name != "ExecuteSQLQuery" || call.Function.Arguments["sql"] != "select 1" {
		t.Errorf("function = %+v", call.Function)
	}
}

func TestNewToolCompletedEvent(t *testing.T) {
	task := &CompressedTask{
		UniqueID: "sql_1",
		Agent:    "ExecuteSQLQuery",
		RunID:    "mxgen_run",
		Args:     map[string]any{"sql": "select 1"},
		Result:   "1 row",
	}
	ev := NewToolCompletedEvent(task)
	if ev.Type != EventToolCompleted {
		t.Errorf("type = %q", ev.Type)
	}
	call := ev.Payload.(CompletedToolCall)
	if call.Role != "tool" || call.ToolCallID != "sql_1" || call.Content != "1 row" {
		t.Errorf("call = %+v", call)
	}
	if call.RunID != "mxgen_run" || call.CreatedAt == "" {
		t.Errorf("call = %+v", call)
	}
}

func TestNewToolCompletedEvent_NilResult(t *testing.T) {
	ev := NewToolCompletedEvent(&CompressedTask{UniqueID: "t1", Agent: "X"})
	call := ev.Payload.(CompletedToolCall)
	if call.Content != "" {
		t.Errorf("content = %v, want empty string for missing result", call.Content)
	}
}

func TestStreamEventJSONShape(t *testing.T) {
	ev := NewToolCreatedEvent(&CompressedTask{
		UniqueID: "t1",
		Agent:    "Navigate",
		Args:     map[string]any{"path": "/dash"},
	})
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["type"] != "ToolCreated" {
		t.Errorf("type = %v", decoded["type"])
	}
	fn := decoded["payload"].(map[string]any)["function"].(map[string]any)
	if fn["name"] != "Navigate" {
		t.Errorf("payload = %v", decoded["payload"])
	}
	if _, present := fn["child_tasks_batch"]; present {
		t.Error("empty child_tasks_batch must be omitted")
	}
}
