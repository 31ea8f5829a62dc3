package minusx

// Log-level views over a conversation. These operate on the raw entry list
// rather than on [Conversation] because the HTTP layer works with logs
// supplied by the client on every request.

// LatestRoot returns the index and entry of the last root task in the log.
// A root task has no parent. Returns (-1, nil) when the log holds none.
func LatestRoot(log Log) (int, *Task) {
	rootIndex := -1
	var root *Task
	for i, entry := range log {
		if t, ok := entry.(*Task); ok && t.ParentUniqueID == nil {
			rootIndex = i
			root = t
		}
	}
	return rootIndex, root
}

// PendingLeafTasks extracts pending tasks from the latest root onwards, in
// log order. A task is pending when no result entry follows it, and a leaf
// when no pending task names it as parent.
func PendingLeafTasks(log Log) []*Task {
	rootIndex, _ := LatestRoot(log)
	if rootIndex < 0 {
		return nil
	}

	pending := make(map[string]*Task)
	var order []string
	for _, entry := range log[rootIndex:] {
		switch e := entry.(type) {
		case *Task:
			if _, seen := pending[e.UniqueID]; !seen {
				order = append(order, e.UniqueID)
			}
			pending[e.UniqueID] = e
		case *TaskResult:
			delete(pending, e.TaskUniqueID)
		}
	}

	parents := make(map[string]bool)
	for _, t := range pending {
		if t.ParentUniqueID != nil {
			parents[*t.ParentUniqueID] = true
		}
	}

	var leaves []*Task
	for _, id := range order {
		t, ok := pending[id]
		if !ok || parents[t.UniqueID] {
			continue
		}
		leaves = append(leaves, t)
	}
	return leaves
}

// pendingLeafToolCall converts a pending leaf task to its tool-call shape.
// When taskOrder and resultMap are given, completed children are attached
// as child_tasks_batch, grouped by run id. Children of a pending leaf are
// complete by definition, so every child has a result to attach.
func pendingLeafToolCall(task *Task, taskOrder []*Task, resultMap map[string]any) ToolCall {
	call := ToolCall{
		ID:   task.UniqueID,
		Type: "function",
		Function: ToolFunction{
			Name:      task.Agent,
			Arguments: task.Args,
		},
	}
	if taskOrder == nil || resultMap == nil {
		return call
	}

	var batches [][]ChildTaskResult
	batchIndex := make(map[string]int)
	for _, child := range taskOrder {
		if child.ParentUniqueID == nil || *child.ParentUniqueID != task.UniqueID {
			continue
		}
		i, ok := batchIndex[child.RunID]
		if !ok {
			i = len(batches)
			batchIndex[child.RunID] = i
			batches = append(batches, nil)
		}
		batches[i] = append(batches[i], ChildTaskResult{
			ToolCallID: child.UniqueID,
			Agent:      child.Agent,
			Args:       child.Args,
			Result:     resultMap[child.UniqueID],
		})
	}
	if len(batches) > 0 {
		call.Function.ChildTasksBatch = batches
	}
	return call
}

// InterruptedResult is recorded for pending tasks when a conversation is
// closed before the client reports their outcomes.
const InterruptedResult = "<Interrupted />"

// UpdateLogWithCompletedToolCalls appends result entries for tool calls the
// client reports as finished. Only tasks from the latest root onwards are
// considered. Pending tasks the client did not report are returned as
// still-pending tool calls, unless interruptPending is set, in which case
// they are resolved with [InterruptedResult] instead.
//
// A non-empty remainder means the conversation is not ready to resume.
func UpdateLogWithCompletedToolCalls(log Log, completed []ToolResultMessage, interruptPending bool) (Log, []ToolCall) {
	leaves := PendingLeafTasks(log)

	completedMap := make(map[string]any, len(completed))
	for _, msg := range completed {
		completedMap[msg.ToolCallID] = msg.Content
	}

	var remaining []ToolCall
	for _, task := range leaves {
		content, ok := completedMap[task.UniqueID]
		switch {
		case ok:
			log = append(log, &TaskResult{
				Type:         EntryTaskResult,
				TaskUniqueID: task.UniqueID,
				Result:       content,
				CreatedAt:    nowISO(),
			})
		case interruptPending:
			log = append(log, &TaskResult{
				Type:         EntryTaskResult,
				TaskUniqueID: task.UniqueID,
				Result:       InterruptedResult,
				CreatedAt:    nowISO(),
			})
		default:
			remaining = append(remaining, pendingLeafToolCall(task, nil, nil))
		}
	}
	return log, remaining
}

// PendingToolCalls extracts pending tool calls from the latest root onwards.
// Pending tasks with completed children carry those children inline as
// child_tasks_batch so clients can replay nested work without the log.
func PendingToolCalls(log Log) []ToolCall {
	leaves := PendingLeafTasks(log)
	if len(leaves) == 0 {
		return nil
	}

	rootIndex, _ := LatestRoot(log)
	var taskOrder []*Task
	resultMap := make(map[string]any)
	for _, entry := range log[rootIndex:] {
		switch e := entry.(type) {
		case *Task:
			taskOrder = append(taskOrder, e)
		case *TaskResult:
			resultMap[e.TaskUniqueID] = e.Result
		}
	}

	calls := make([]ToolCall, 0, len(leaves))
	for _, task := range leaves {
		calls = append(calls, pendingLeafToolCall(task, taskOrder, resultMap))
	}
	return calls
}

// CompletedToolCalls returns tool messages for results recorded at or after
// fromIndex, joined with their originating tasks from the full log. Results
// whose task cannot be found are skipped.
func CompletedToolCalls(fullLog Log, fromIndex int) []CompletedToolCall {
	taskMap := make(map[string]*Task)
	for _, entry := range fullLog {
		if t, ok := entry.(*Task); ok {
			taskMap[t.UniqueID] = t
		}
	}

	var completed []CompletedToolCall
	for i, entry := range fullLog {
		if i < fromIndex {
			continue
		}
		result, ok := entry.(*TaskResult)
		if !ok {
			continue
		}
		task, ok := taskMap[result.TaskUniqueID]
		if !ok {
			continue
		}
		completed = append(completed, CompletedToolCall{
			Role:       "tool",
			ToolCallID: task.UniqueID,
			Content:    result.Result,
			RunID:      task.RunID,
			Function: ToolFunction{
				Name:      task.Agent,
				Arguments: task.Args,
			},
			CreatedAt: result.CreatedAt,
		})
	}
	return completed
}

// LLMCallDetail is the per-call debug record surfaced to API clients.
type LLMCallDetail struct {
	LLMCallID        string         `json:"llm_call_id"`
	Model            string         `json:"model"`
	Duration         float64        `json:"duration"`
	TotalTokens      int            `json:"total_tokens"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	Cost             float64        `json:"cost"`
	FinishReason     string         `json:"finish_reason,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// ExtractLLMCalls pulls LLM call details out of a log diff and strips the
// bulky extra payloads from the diff in place. The returned map keeps the
// full detail, including request and response bodies, keyed by call id;
// the diff is left lean for persistence. First record per call id wins.
func ExtractLLMCalls(diff Log) map[string]LLMCallDetail {
	calls := make(map[string]LLMCallDetail)
	for _, entry := range diff {
		debug, ok := entry.(*TaskDebugEntry)
		if !ok {
			continue
		}
		for _, d := range debug.LLMDebug {
			if d.CallID != "" {
				if _, seen := calls[d.CallID]; !seen {
					calls[d.CallID] = LLMCallDetail{
						LLMCallID:        d.CallID,
						Model:            d.Model,
						Duration:         d.Duration,
						TotalTokens:      d.TotalTokens,
						PromptTokens:     d.PromptTokens,
						CompletionTokens: d.CompletionTokens,
						Cost:             d.Cost,
						FinishReason:     d.FinishReason,
						Extra:            d.Extra,
					}
				}
			}
			d.Extra = nil
		}
	}
	return calls
}
