package minusx

import (
	"testing"
)

func TestNewConversation_RebuildGroupsChildrenByRunID(t *testing.T) {
	log := Log{
		taskEntry("root", "MultiToolAgent", "run_0", nil, nil),
		taskEntry("c1", "SimpleTool", "run_1", ptr("root"), map[string]any{"value": "a"}),
		taskEntry("c2", "SimpleTool", "run_1", ptr("root"), map[string]any{"value": "b"}),
		resultEntry("c1", "Tool result: a"),
		resultEntry("c2", "Tool result: b"),
		taskEntry("c3", "SimpleTool", "run_2", ptr("root"), map[string]any{"value": "c"}),
	}
	c := NewConversation(log)

	root := c.Task("root")
	if root == nil {
		t.Fatal("root not rebuilt")
	}
	if len(root.ChildUniqueIDs) != 2 {
		t.Fatalf("got %d child batches, want 2", len(root.ChildUniqueIDs))
	}
	if got := root.ChildUniqueIDs[0]; len(got) != 2 || got[0] != "c1" || got[1] != "c2" {
		t.Errorf("batch 0 = %v, want [c1 c2]", got)
	}
	if got := root.ChildUniqueIDs[1]; len(got) != 1 || got[0] != "c3" {
		t.Errorf("batch 1 = %v, want [c3]", got)
	}

	if c.Task("c1").Result != "Tool result: a" {
		t.Errorf("c1 result = %v", c.Task("c1").Result)
	}
	if c.Task("c3").Result != nil {
		t.Errorf("c3 result = %v, want pending", c.Task("c3").Result)
	}
}

func TestNewConversation_LastResultWinsOnRebuild(t *testing.T) {
	log := Log{
		taskEntry("t1", "SimpleTool", "run_0", nil, nil),
		resultEntry("t1", "first"),
		resultEntry("t1", "second"),
	}
	c := NewConversation(log)
	if got := c.Task("t1").Result; got != "second" {
		t.Errorf("result = %v, want %q", got, "second")
	}
}

func TestNewConversation_IgnoresOrphanEntries(t *testing.T) {
	log := Log{
		taskEntry("t1", "SimpleTool", "run_0", nil, nil),
		resultEntry("ghost", "no such task"),
		taskEntry("orphan", "SimpleTool", "run_1", ptr("missing_parent"), nil),
	}
	c := NewConversation(log)
	if c.Task("t1") == nil {
		t.Fatal("t1 not rebuilt")
	}
	if c.Task("t1").Result != nil {
		t.Errorf("t1 result = %v, want pending", c.Task("t1").Result)
	}
	// The orphan task itself is kept; only its parent link dangles.
	if c.Task("orphan") == nil {
		t.Error("orphan task dropped")
	}
}

func TestConversation_AssignResultKeepsFirstWrite(t *testing.T) {
	c := NewConversation(nil)
	c.AddTask(&CompressedTask{UniqueID: "t1", Agent: "SimpleTool", RunID: "run_0", Args: map[string]any{}})

	c.AssignResult("t1", "first")
	c.AssignResult("t1", "second")

	if got := c.Task("t1").Result; got != "first" {
		t.Errorf("result = %v, want %q", got, "first")
	}
	// Only one result entry lands in the log.
	results := 0
	for _, e := range c.Log() {
		if _, ok := e.(*TaskResult); ok {
			results++
		}
	}
	if results != 1 {
		t.Errorf("got %d result entries, want 1", results)
	}
}

func TestConversation_AssignResultUnknownTask(t *testing.T) {
	c := NewConversation(nil)
	c.AssignResult("ghost", "value")
	if got := len(c.Log()); got != 0 {
		t.Errorf("log has %d entries, want 0", got)
	}
}

func TestConversation_LogDiff(t *testing.T) {
	log := Log{
		taskEntry("t1", "SimpleTool", "run_0", nil, nil),
		resultEntry("t1", "done"),
	}
	c := NewConversation(log)
	if got := len(c.LogDiff()); got != 0 {
		t.Fatalf("fresh diff has %d entries, want 0", got)
	}

	c.AddTask(&CompressedTask{UniqueID: "t2", Agent: "SimpleTool", RunID: "run_1", Args: map[string]any{}})
	c.AssignResult("t2", "done too")

	diff := c.LogDiff()
	if len(diff) != 2 {
		t.Fatalf("diff has %d entries, want 2", len(diff))
	}
	if len(c.Log()) != 4 {
		t.Errorf("full log has %d entries, want 4", len(c.Log()))
	}
}

func TestConversation_ChildrenReturnsDeepCopies(t *testing.T) {
	log := Log{
		taskEntry("root", "MultiToolAgent", "run_0", nil, nil),
		taskEntry("c1", "SimpleTool", "run_1", ptr("root"), map[string]any{"value": "a"}),
	}
	c := NewConversation(log)

	batches, err := c.children("root")
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("unexpected batch shape: %v", batches)
	}
	batches[0][0].Args["value"] = "mutated"
	batches[0][0].Result = "mutated"

	if got := c.Task("c1").Args["value"]; got != "a" {
		t.Errorf("live args changed to %v via returned copy", got)
	}
	if c.Task("c1").Result != nil {
		t.Error("live result changed via returned copy")
	}
}

func TestConversation_ChildrenUnknownTask(t *testing.T) {
	c := NewConversation(nil)
	if _, err := c.children("ghost"); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestConversation_LeafPendingTasks(t *testing.T) {
	log := Log{
		taskEntry("old_root", "MultiToolAgent", "run_0", nil, nil),
		resultEntry("old_root", "done"),
		taskEntry("root", "MultiToolAgent", "run_1", nil, nil),
		taskEntry("c1", "UserInputTool", "run_2", ptr("root"), nil),
		taskEntry("c2", "UserInputTool", "run_2", ptr("root"), nil),
		resultEntry("c1", "done"),
	}
	c := NewConversation(log)

	leaves := c.leafPendingTasks()
	if len(leaves) != 1 {
		t.Fatalf("got %d leaves, want 1", len(leaves))
	}
	// root is pending but c2 under it is too, so only c2 is a leaf.
	if leaves[0].UniqueID != "c2" {
		t.Errorf("leaf = %q, want c2", leaves[0].UniqueID)
	}
}

func TestConversation_LeafPendingTasksPromotesParent(t *testing.T) {
	log := Log{
		taskEntry("root", "MultiToolAgent", "run_0", nil, nil),
		taskEntry("c1", "UserInputTool", "run_1", ptr("root"), nil),
		resultEntry("c1", "done"),
	}
	c := NewConversation(log)

	leaves := c.leafPendingTasks()
	if len(leaves) != 1 || leaves[0].UniqueID != "root" {
		t.Fatalf("leaves = %v, want [root]", leafIDs(leaves))
	}
}

func TestConversation_PreviousRootTasks(t *testing.T) {
	log := Log{
		taskEntry("root1", "MultiToolAgent", "run_0", nil, map[string]any{"goal": "one"}),
		resultEntry("root1", "done one"),
	}
	root2 := taskEntry("root2", "MultiToolAgent", "run_1", nil, map[string]any{"goal": "two"})
	root2.PreviousUniqueID = ptr("root1")
	log = append(log, root2, resultEntry("root2", "done two"))
	root3 := taskEntry("root3", "MultiToolAgent", "run_2", nil, map[string]any{"goal": "three"})
	root3.PreviousUniqueID = ptr("root2")
	log = append(log, root3)

	c := NewConversation(log)
	prev := c.previousRootTasks()
	if len(prev) != 2 {
		t.Fatalf("got %d previous roots, want 2", len(prev))
	}
	if prev[0].UniqueID != "root2" || prev[1].UniqueID != "root1" {
		t.Errorf("order = [%s %s], want [root2 root1]", prev[0].UniqueID, prev[1].UniqueID)
	}
}

func TestConversation_PreviousRootTasksBrokenChain(t *testing.T) {
	root := taskEntry("root", "MultiToolAgent", "run_0", nil, nil)
	root.PreviousUniqueID = ptr("never_sent")
	c := NewConversation(Log{root})
	if got := c.previousRootTasks(); len(got) != 0 {
		t.Errorf("got %d roots, want 0 for dangling chain", len(got))
	}
}

func leafIDs(tasks []*CompressedTask) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.UniqueID
	}
	return ids
}
