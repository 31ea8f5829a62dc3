package minusx

import (
	"fmt"
	"log/slog"
	"sync"
)

// CompressedTask is the mutable, per-request view of a task, reconstructed
// from the log. Result nil means the task is pending. ChildUniqueIDs
// groups children into dispatch batches: one inner slice per shared run id.
type CompressedTask struct {
	ParentUniqueID   *string
	PreviousUniqueID *string
	RunID            string
	Agent            string
	Args             map[string]any
	UniqueID         string
	Debug            *TaskDebug
	ChildUniqueIDs   [][]string
	Result           any
}

func (t *CompressedTask) clone() *CompressedTask {
	cp := *t
	cp.Args = copyJSONMap(t.Args)
	if t.Result != nil {
		cp.Result = copyJSONValue(t.Result)
	}
	if t.ChildUniqueIDs != nil {
		cp.ChildUniqueIDs = make([][]string, len(t.ChildUniqueIDs))
		for i, batch := range t.ChildUniqueIDs {
			cp.ChildUniqueIDs[i] = append([]string(nil), batch...)
		}
	}
	if t.Debug != nil {
		d := *t.Debug
		d.LLM = append([]*LLMDebug(nil), t.Debug.LLM...)
		cp.Debug = &d
	}
	return &cp
}

// Conversation pairs the append-only log with the mutable task state
// rebuilt from it. All mutations append to the log so that the client can
// replay them; LogDiff returns exactly the entries added since rebuild.
// Methods are safe for concurrent use by sibling task executions.
type Conversation struct {
	mu       sync.Mutex
	log      Log
	tasks    map[string]*CompressedTask
	order    []string // insertion order; map iteration alone is not deterministic
	logStart int
	logger   *slog.Logger

	onToolCreated   func(*CompressedTask)
	onToolCompleted func(*CompressedTask)
}

// NewConversation rebuilds compressed state from a client-held log. The
// rebuild is total: entries referring to unknown tasks are ignored, debug
// entries are deltas and are not folded back, and the result is identical
// for identical logs.
func NewConversation(log Log) *Conversation {
	c := &Conversation{
		tasks:  make(map[string]*CompressedTask),
		logger: nopLogger,
	}
	c.rebuild(log)
	return c
}

func (c *Conversation) rebuild(log Log) {
	c.log = append(Log{}, log...)
	c.logStart = len(log)

	for _, entry := range log {
		t, ok := entry.(*Task)
		if !ok {
			continue
		}
		if _, seen := c.tasks[t.UniqueID]; !seen {
			c.order = append(c.order, t.UniqueID)
		}
		c.tasks[t.UniqueID] = &CompressedTask{
			ParentUniqueID:   t.ParentUniqueID,
			PreviousUniqueID: t.PreviousUniqueID,
			RunID:            t.RunID,
			Agent:            t.Agent,
			Args:             t.Args,
			UniqueID:         t.UniqueID,
			Debug:            &TaskDebug{},
		}
	}
	for _, entry := range log {
		r, ok := entry.(*TaskResult)
		if !ok {
			continue
		}
		if t := c.tasks[r.TaskUniqueID]; t != nil {
			t.Result = r.Result
		}
	}
	// Group children into batches by run id, in task insertion order.
	for _, id := range c.order {
		t := c.tasks[id]
		if t.ParentUniqueID == nil {
			continue
		}
		parent := c.tasks[*t.ParentUniqueID]
		if parent == nil {
			continue
		}
		placed := false
		for i, batch := range parent.ChildUniqueIDs {
			if len(batch) > 0 && c.tasks[batch[0]].RunID == t.RunID {
				parent.ChildUniqueIDs[i] = append(batch, id)
				placed = true
				break
			}
		}
		if !placed {
			parent.ChildUniqueIDs = append(parent.ChildUniqueIDs, []string{id})
		}
	}
}

// AddTask records a new task in the compressed state and appends the Task
// entry to the log. Fires the tool-created callback if one is set.
func (c *Conversation) AddTask(t *CompressedTask) {
	c.mu.Lock()
	if _, seen := c.tasks[t.UniqueID]; !seen {
		c.order = append(c.order, t.UniqueID)
	}
	c.tasks[t.UniqueID] = t
	c.log = append(c.log, &Task{
		Type:             EntryTask,
		ParentUniqueID:   t.ParentUniqueID,
		PreviousUniqueID: t.PreviousUniqueID,
		RunID:            t.RunID,
		Agent:            t.Agent,
		Args:             t.Args,
		UniqueID:         t.UniqueID,
		CreatedAt:        nowISO(),
	})
	created := c.onToolCreated
	c.mu.Unlock()
	if created != nil {
		created(t)
	}
}

// AssignResult sets a task's result and appends the TaskResult entry.
// A task's result is written at most once per request; later writes are
// dropped and logged, keeping the first.
func (c *Conversation) AssignResult(taskUniqueID string, result any) {
	c.mu.Lock()
	t := c.tasks[taskUniqueID]
	if t == nil {
		c.mu.Unlock()
		c.logger.Error("assign result for unknown task", "task_unique_id", taskUniqueID)
		return
	}
	if t.Result != nil {
		c.mu.Unlock()
		c.logger.Warn("duplicate result dropped", "task_unique_id", taskUniqueID, "agent", t.Agent)
		return
	}
	t.Result = result
	c.log = append(c.log, &TaskResult{
		Type:         EntryTaskResult,
		TaskUniqueID: taskUniqueID,
		Result:       result,
		CreatedAt:    nowISO(),
	})
	completed := c.onToolCompleted
	c.mu.Unlock()
	if completed != nil {
		completed(t)
	}
}

// AddDebug attaches phase debug info to a task and appends the
// TaskDebugEntry to the log.
func (c *Conversation) AddDebug(taskUniqueID string, debug *TaskDebug) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.tasks[taskUniqueID]; t != nil {
		t.Debug = debug
	}
	c.log = append(c.log, &TaskDebugEntry{
		Type:         EntryTaskDebug,
		TaskUniqueID: taskUniqueID,
		Duration:     debug.Duration,
		LLMDebug:     debug.LLM,
		CreatedAt:    nowISO(),
	})
}

// Log returns the full log, including entries appended this request.
func (c *Conversation) Log() Log {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(Log{}, c.log...)
}

// LogDiff returns the entries appended since the conversation was rebuilt.
func (c *Conversation) LogDiff() Log {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(Log{}, c.log[c.logStart:]...)
}

// Task returns the live compressed task for id, or nil.
func (c *Conversation) Task(uniqueID string) *CompressedTask {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tasks[uniqueID]
}

func (c *Conversation) hasResult(uniqueID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tasks[uniqueID]
	return t != nil && t.Result != nil
}

func (c *Conversation) appendChildBatch(parentUniqueID string, batch []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p := c.tasks[parentUniqueID]; p != nil {
		p.ChildUniqueIDs = append(p.ChildUniqueIDs, batch)
	}
}

func (c *Conversation) children(uniqueID string) ([][]*CompressedTask, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tasks[uniqueID]
	if t == nil {
		return nil, fmt.Errorf("task %q not found", uniqueID)
	}
	out := make([][]*CompressedTask, len(t.ChildUniqueIDs))
	for i, group := range t.ChildUniqueIDs {
		out[i] = make([]*CompressedTask, 0, len(group))
		for _, id := range group {
			if child := c.tasks[id]; child != nil {
				out[i] = append(out[i], child.clone())
			}
		}
	}
	return out, nil
}

// leafPendingTasks returns pending tasks that are not themselves parents
// of pending tasks, in task insertion order.
func (c *Conversation) leafPendingTasks() []*CompressedTask {
	c.mu.Lock()
	defer c.mu.Unlock()
	pendingParents := make(map[string]struct{})
	for _, id := range c.order {
		t := c.tasks[id]
		if t.Result == nil && t.ParentUniqueID != nil {
			pendingParents[*t.ParentUniqueID] = struct{}{}
		}
	}
	var leaves []*CompressedTask
	for _, id := range c.order {
		t := c.tasks[id]
		if t.Result != nil {
			continue
		}
		if _, isParent := pendingParents[t.UniqueID]; !isParent {
			leaves = append(leaves, t)
		}
	}
	return leaves
}

// previousRootTasks follows the previous-root chain backwards from the
// latest root, most recent first. Returned tasks are deep copies.
func (c *Conversation) previousRootTasks() []*CompressedTask {
	c.mu.Lock()
	defer c.mu.Unlock()
	var latest *CompressedTask
	for i := len(c.order) - 1; i >= 0; i-- {
		if t := c.tasks[c.order[i]]; t.ParentUniqueID == nil {
			latest = t
			break
		}
	}
	if latest == nil {
		return nil
	}
	var roots []*CompressedTask
	currentID := latest.PreviousUniqueID
	for currentID != nil {
		t := c.tasks[*currentID]
		if t == nil {
			break
		}
		roots = append(roots, t.clone())
		currentID = t.PreviousUniqueID
	}
	return roots
}

// copyJSONValue deep-copies a JSON-shaped value (maps, slices, scalars).
// Values of other types are shared; the log only ever holds JSON shapes.
func copyJSONValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyJSONMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyJSONValue(item)
		}
		return out
	default:
		return v
	}
}

func copyJSONMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyJSONValue(v)
	}
	return out
}
