package minusx

import (
	"encoding/json"
	"time"
)

// Log entry kinds, discriminated by the "_type" field on the wire.
const (
	EntryTask       = "task"
	EntryTaskResult = "task_result"
	EntryTaskDebug  = "task_debug"
)

// LogEntry is one entry of the append-only conversation log. The concrete
// types are [*Task], [*TaskResult], and [*TaskDebugEntry]; the set is
// closed.
type LogEntry interface {
	EntryKind() string
}

// Task records the creation of a unit of work. Roots have a nil parent;
// siblings dispatched together share a run id.
type Task struct {
	Type             string         `json:"_type"`
	ParentUniqueID   *string        `json:"_parent_unique_id"`
	PreviousUniqueID *string        `json:"_previous_unique_id"`
	RunID            string         `json:"_run_id"`
	Agent            string         `json:"agent"`
	Args             map[string]any `json:"args"`
	UniqueID         string         `json:"unique_id"`
	CreatedAt        string         `json:"created_at"`
}

func (*Task) EntryKind() string { return EntryTask }

// TaskResult records the completion of a task. Result is a string or a
// JSON object; nil means the entry carries no usable result and the task
// stays pending.
type TaskResult struct {
	Type         string `json:"_type"`
	TaskUniqueID string `json:"_task_unique_id"`
	Result       any    `json:"result"`
	CreatedAt    string `json:"created_at"`
}

func (*TaskResult) EntryKind() string { return EntryTaskResult }

// TaskDebugEntry records timing and LLM accounting for one execution phase
// of a task. Entries are deltas: a task that suspends and resumes gets one
// entry per phase, and readers aggregate.
type TaskDebugEntry struct {
	Type         string         `json:"_type"`
	TaskUniqueID string         `json:"_task_unique_id"`
	Duration     float64        `json:"duration"`
	LLMDebug     []*LLMDebug    `json:"llmDebug"`
	Extra        map[string]any `json:"extra,omitempty"`
	CreatedAt    string         `json:"created_at"`
}

func (*TaskDebugEntry) EntryKind() string { return EntryTaskDebug }

// Log is an append-only conversation log. It round-trips through JSON:
// parsing and re-serializing a well-formed log yields the same entries.
// Entries with an unknown or missing "_type" are dropped during parsing so
// that state can always be rebuilt from whatever the client sends.
type Log []LogEntry

func (l Log) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]LogEntry(l))
}

func (l *Log) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(Log, 0, len(raws))
	for _, raw := range raws {
		var head struct {
			Type string `json:"_type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			continue
		}
		switch head.Type {
		case EntryTask:
			var e Task
			if err := json.Unmarshal(raw, &e); err == nil {
				out = append(out, &e)
			}
		case EntryTaskResult:
			var e TaskResult
			if err := json.Unmarshal(raw, &e); err == nil {
				out = append(out, &e)
			}
		case EntryTaskDebug:
			var e TaskDebugEntry
			if err := json.Unmarshal(raw, &e); err == nil {
				out = append(out, &e)
			}
		}
	}
	*l = out
	return nil
}

// nowISO returns the current UTC time in ISO 8601 with microsecond
// precision, the timestamp format clients already hold in their logs.
func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "+00:00"
}
