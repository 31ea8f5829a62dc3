package minusx

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestOrchestratorRun_AssignsResultAndDebug(t *testing.T) {
	o := NewOrchestrator(nil)
	err := o.Run(context.Background(), []AgentCall{
		{Agent: "DefaultAgent", UniqueID: "root_1"},
	}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	task := o.Compressed().Task("root_1")
	if task == nil {
		t.Fatal("task not recorded")
	}
	if task.Result != defaultGreeting {
		t.Errorf("result = %v, want %q", task.Result, defaultGreeting)
	}

	diff := o.Compressed().LogDiff()
	if len(diff) != 3 {
		t.Fatalf("diff has %d entries, want 3 (task, result, debug)", len(diff))
	}
	if _, ok := diff[0].(*Task); !ok {
		t.Errorf("diff[0] is %T, want *Task", diff[0])
	}
	if _, ok := diff[1].(*TaskResult); !ok {
		t.Errorf("diff[1] is %T, want *TaskResult", diff[1])
	}
	if _, ok := diff[2].(*TaskDebugEntry); !ok {
		t.Errorf("diff[2] is %T, want *TaskDebugEntry", diff[2])
	}
}

func TestOrchestratorRun_MissingRequiredParams(t *testing.T) {
	o := NewOrchestrator(nil)
	err := o.Run(context.Background(), []AgentCall{
		{Agent: "EchoAgent", UniqueID: "t1"},
	}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "<ERROR>Required parameters missing: message</ERROR>"
	if got := o.Compressed().Task("t1").Result; got != want {
		t.Errorf("result = %v, want %q", got, want)
	}
}

func TestOrchestratorRun_RejectsReservedArgKeys(t *testing.T) {
	for _, key := range []string{"_unique_id", "orchestrator"} {
		o := NewOrchestrator(nil)
		err := o.Run(context.Background(), []AgentCall{
			{Agent: "DefaultAgent", Args: map[string]any{key: "x"}},
		}, nil, nil)
		if err == nil {
			t.Fatalf("key %q: expected error, got nil", key)
		}
		if !strings.Contains(err.Error(), "cannot contain") {
			t.Errorf("key %q: error = %v", key, err)
		}
	}
}

func TestOrchestratorRun_UnknownAgent(t *testing.T) {
	o := NewOrchestrator(nil)
	err := o.Run(context.Background(), []AgentCall{{Agent: "NoSuchAgent"}}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("error = %v, want agent not found", err)
	}
}

func TestOrchestratorRun_ErrorCallSkipsExecution(t *testing.T) {
	o := NewOrchestrator(nil)
	err := o.Run(context.Background(), []AgentCall{
		{Agent: "EchoAgent", UniqueID: "bad_1", Error: "Invalid JSON in arguments"},
	}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := o.Compressed().Task("bad_1").Result; got != "Invalid JSON in arguments" {
		t.Errorf("result = %v, want the error string", got)
	}
	// The error is recorded in compressed state only; no result entry is
	// appended, so the log still shows the task as pending.
	for _, e := range o.Compressed().LogDiff() {
		if _, ok := e.(*TaskResult); ok {
			t.Error("unexpected TaskResult entry for errored call")
		}
	}
}

func TestOrchestratorRun_SuspendsOnClientTool(t *testing.T) {
	o := NewOrchestrator(nil)
	err := o.Run(context.Background(), []AgentCall{
		{Agent: "UserInputTool", UniqueID: "tool_1"},
	}, nil, nil)

	var uie *UserInputError
	if !errors.As(err, &uie) {
		t.Fatalf("error = %v, want UserInputError", err)
	}
	if len(uie.TaskIDs) != 1 || uie.TaskIDs[0] != "tool_1" {
		t.Errorf("suspended ids = %v, want [tool_1]", uie.TaskIDs)
	}
	if o.Compressed().Task("tool_1").Result != nil {
		t.Error("suspended task must stay pending")
	}
}

func TestOrchestratorRun_DispatchRecordsChildBatch(t *testing.T) {
	o := NewOrchestrator(nil)
	err := o.Run(context.Background(), []AgentCall{
		{Agent: "MultiToolAgent", UniqueID: "root_1"},
	}, nil, nil)

	var uie *UserInputError
	if !errors.As(err, &uie) {
		t.Fatalf("error = %v, want UserInputError", err)
	}
	if len(uie.TaskIDs) != 2 {
		t.Fatalf("suspended ids = %v, want two client tools", uie.TaskIDs)
	}

	root := o.Compressed().Task("root_1")
	if len(root.ChildUniqueIDs) != 1 || len(root.ChildUniqueIDs[0]) != 2 {
		t.Fatalf("child batches = %v, want one batch of two", root.ChildUniqueIDs)
	}

	batches, err := o.Children("root_1")
	if err != nil {
		t.Fatal(err)
	}
	if batches[0][0].Agent != "UserInputTool" || batches[0][1].Agent != "UserInputToolBackend" {
		t.Errorf("child agents = %s, %s", batches[0][0].Agent, batches[0][1].Agent)
	}
}

func TestOrchestratorResume_CompletesParent(t *testing.T) {
	// First request: root dispatches two client tools and suspends.
	o1 := NewOrchestrator(nil)
	err := o1.Run(context.Background(), []AgentCall{
		{Agent: "MultiToolAgent", UniqueID: "root_1", Args: map[string]any{"goal": "test"}},
	}, nil, nil)
	if !IsUserInput(err) {
		t.Fatalf("error = %v, want UserInputError", err)
	}
	log := o1.Compressed().Log()

	// Client runs both tools and reports results.
	pending := PendingToolCalls(log)
	if len(pending) != 2 {
		t.Fatalf("got %d pending tool calls, want 2", len(pending))
	}
	var completed []ToolResultMessage
	for _, call := range pending {
		completed = append(completed, ToolResultMessage{
			Role: "tool", ToolCallID: call.ID, Content: "done " + call.Function.Name,
		})
	}
	log, remaining := UpdateLogWithCompletedToolCalls(log, completed, false)
	if len(remaining) != 0 {
		t.Fatalf("remaining = %v, want none", remaining)
	}

	// Second request resumes from the updated log and completes the root.
	o2 := NewOrchestrator(log)
	if err := o2.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := o2.Compressed().Task("root_1").Result; got != "All tools completed" {
		t.Errorf("root result = %v, want %q", got, "All tools completed")
	}
}

func TestOrchestratorResume_WaitsForAllChildren(t *testing.T) {
	o1 := NewOrchestrator(nil)
	err := o1.Run(context.Background(), []AgentCall{
		{Agent: "MultiToolAgent", UniqueID: "root_1"},
	}, nil, nil)
	if !IsUserInput(err) {
		t.Fatalf("error = %v, want UserInputError", err)
	}
	log := o1.Compressed().Log()

	// Only the first tool reports back.
	pending := PendingToolCalls(log)
	log, _ = UpdateLogWithCompletedToolCalls(log, []ToolResultMessage{
		{Role: "tool", ToolCallID: pending[0].ID, Content: "done"},
	}, false)

	o2 := NewOrchestrator(log)
	err = o2.Resume(context.Background())

	// The second tool suspends again; the root must not have run.
	var uie *UserInputError
	if !errors.As(err, &uie) {
		t.Fatalf("error = %v, want UserInputError", err)
	}
	if len(uie.TaskIDs) != 1 || uie.TaskIDs[0] != pending[1].ID {
		t.Errorf("suspended ids = %v, want [%s]", uie.TaskIDs, pending[1].ID)
	}
	if o2.Compressed().Task("root_1").Result != nil {
		t.Error("root ran before all children completed")
	}
}

func TestOrchestratorRun_BatchSharesRunID(t *testing.T) {
	o := NewOrchestrator(nil)
	if err := o.Run(context.Background(), []AgentCall{
		{Agent: "EchoAgent", UniqueID: "a", Args: map[string]any{"message": "one"}},
		{Agent: "EchoAgent", UniqueID: "b", Args: map[string]any{"message": "two"}},
	}, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := o.Run(context.Background(), []AgentCall{
		{Agent: "EchoAgent", UniqueID: "c", Args: map[string]any{"message": "three"}},
	}, nil, nil); err != nil {
		t.Fatal(err)
	}

	a, b, c := o.Compressed().Task("a"), o.Compressed().Task("b"), o.Compressed().Task("c")
	if a.RunID != b.RunID {
		t.Errorf("siblings have run ids %q and %q, want shared", a.RunID, b.RunID)
	}
	if a.RunID == c.RunID {
		t.Error("separate batches share a run id")
	}
	if !strings.HasPrefix(a.RunID, "mxgen_") {
		t.Errorf("run id %q does not carry the mxgen_ prefix", a.RunID)
	}
}

func TestOrchestratorRun_PreviousRootThreading(t *testing.T) {
	// Turn one: a completed root.
	o1 := NewOrchestrator(nil)
	if err := o1.Run(context.Background(), []AgentCall{
		{Agent: "DefaultAgent", UniqueID: "root_1", Args: map[string]any{"goal": "first"}},
	}, nil, nil); err != nil {
		t.Fatal(err)
	}
	log := o1.Compressed().Log()

	// Turn two: new root linked to the first. MultiToolAgent sees the
	// previous thread and returns its length instead of dispatching.
	o2 := NewOrchestrator(log)
	if err := o2.Run(context.Background(), []AgentCall{
		{Agent: "MultiToolAgent", UniqueID: "root_2", Args: map[string]any{"goal": "second"}},
	}, nil, ptr("root_1")); err != nil {
		t.Fatal(err)
	}

	prev := o2.PreviousRootTasks()
	if len(prev) != 1 || prev[0].UniqueID != "root_1" {
		t.Fatalf("previous roots = %v, want [root_1]", leafIDs(prev))
	}
	// Thread for root_1: user message plus final assistant content.
	if got := o2.Compressed().Task("root_2").Result; got != "2" {
		t.Errorf("result = %v, want %q (thread length)", got, "2")
	}
}

func TestOrchestratorRun_CallbacksFire(t *testing.T) {
	var created, completedCalls []string
	var messages []map[string]any
	o := NewOrchestrator(nil,
		OnToolCreated(func(task *CompressedTask) { created = append(created, task.UniqueID) }),
		OnToolCompleted(func(task *CompressedTask) { completedCalls = append(completedCalls, task.UniqueID) }),
		OnMessage(func(m map[string]any) { messages = append(messages, m) }),
	)
	if err := o.Run(context.Background(), []AgentCall{
		{Agent: "DefaultAgent", UniqueID: "t1"},
	}, nil, nil); err != nil {
		t.Fatal(err)
	}

	if len(created) != 1 || created[0] != "t1" {
		t.Errorf("created = %v, want [t1]", created)
	}
	if len(completedCalls) != 1 || completedCalls[0] != "t1" {
		t.Errorf("completed = %v, want [t1]", completedCalls)
	}
	if len(messages) != 1 {
		t.Fatalf("messages = %v, want one start message", messages)
	}
	content, ok := messages[0]["content"].(map[string]any)
	if !ok || content["agent"] != "DefaultAgent" {
		t.Errorf("message content = %v", messages[0]["content"])
	}
}

func TestGatherResumeAfterInterrupt(t *testing.T) {
	// A closed conversation marks pending tools interrupted; resume then
	// completes the parent with the interrupt markers as results.
	o1 := NewOrchestrator(nil)
	err := o1.Run(context.Background(), []AgentCall{
		{Agent: "MultiToolAgent", UniqueID: "root_1"},
	}, nil, nil)
	if !IsUserInput(err) {
		t.Fatalf("error = %v, want UserInputError", err)
	}

	log, remaining := UpdateLogWithCompletedToolCalls(o1.Compressed().Log(), nil, true)
	if len(remaining) != 0 {
		t.Fatalf("remaining = %v, want none after interrupt", remaining)
	}

	o2 := NewOrchestrator(log)
	if err := o2.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := o2.Compressed().Task("root_1").Result; got != "All tools completed" {
		t.Errorf("root result = %v, want %q", got, "All tools completed")
	}
}
