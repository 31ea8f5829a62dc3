package minusx

import (
	"encoding/json"
	"fmt"
)

// Translation between compressed tasks and the chat-completions message
// format. The LLM sees the conversation as an alternating thread of
// assistant tool calls and tool results; the log stores the same history
// as task entries. These helpers convert in both directions.

// parseJSON decodes s, returning the raw string unchanged when it does
// not parse.
func parseJSON(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// ToolCallsToAgentCalls converts raw LLM tool calls into agent calls,
// decoding each call's argument string. Assistant text rides along as a
// TalkToUser call: contentBlocks when the provider produced blocks,
// otherwise content wrapped in a single text block. Calls whose arguments
// fail to decode into an object are preserved with the raw string under
// "_original_args" and an error that short-circuits execution.
func ToolCallsToAgentCalls(toolCalls []RawToolCall, content string, citations []any, contentBlocks []map[string]any) []AgentCall {
	var calls []AgentCall

	if len(contentBlocks) > 0 {
		blocks := make([]any, 0, len(contentBlocks))
		for _, b := range contentBlocks {
			blocks = append(blocks, b)
		}
		calls = append(calls, AgentCall{
			Agent: AgentTalkToUser,
			Args:  map[string]any{"content_blocks": blocks},
		})
	} else if content != "" {
		if citations == nil {
			citations = []any{}
		}
		calls = append(calls, AgentCall{
			Agent: AgentTalkToUser,
			Args: map[string]any{
				"content_blocks": []any{map[string]any{"type": "text", "text": content}},
				"citations":      citations,
			},
		})
	}

	for _, tc := range toolCalls {
		args, ok := parseJSON(tc.Function.Arguments).(map[string]any)
		if !ok {
			calls = append(calls, AgentCall{
				Agent:    tc.Function.Name,
				Args:     map[string]any{"_original_args": tc.Function.Arguments},
				UniqueID: tc.ID,
				Error:    "Invalid JSON in arguments",
			})
			continue
		}
		calls = append(calls, AgentCall{
			Agent:    tc.Function.Name,
			Args:     args,
			UniqueID: tc.ID,
		})
	}

	return calls
}

// talkToUserBlocks extracts content blocks from a TalkToUser result. The
// result is normally the JSON string produced by [TalkToUser.Run]; legacy
// results carry a bare "content" string instead of blocks, and anything
// unparseable is wrapped as a text block verbatim.
func talkToUserBlocks(result any) []any {
	text, ok := result.(string)
	if !ok {
		text = fmt.Sprintf("%v", result)
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil && parsed != nil {
		if blocks, ok := parsed["content_blocks"].([]any); ok {
			return blocks
		}
		if content, ok := parsed["content"]; ok {
			return []any{map[string]any{"type": "text", "text": content}}
		}
	}
	return []any{map[string]any{"type": "text", "text": text}}
}

// TasksToAssistantMessage folds one batch of sibling tasks into a single
// assistant message. Completed TalkToUser tasks become the message content;
// every other task becomes a tool call with its arguments re-encoded as a
// JSON string, underscore-prefixed bookkeeping keys stripped.
func TasksToAssistantMessage(tasks []*CompressedTask) ChatMessage {
	var blocks []any
	var toolCalls []RawToolCall

	for _, t := range tasks {
		if t.Agent == AgentTalkToUser {
			if t.Result != nil {
				blocks = append(blocks, talkToUserBlocks(t.Result)...)
			}
			continue
		}
		cleaned := make(map[string]any, len(t.Args))
		for k, v := range t.Args {
			if len(k) > 0 && k[0] == '_' {
				continue
			}
			cleaned[k] = v
		}
		raw, _ := json.Marshal(cleaned)
		toolCalls = append(toolCalls, RawToolCall{
			ID:   t.UniqueID,
			Type: "function",
			Function: RawFunction{
				Name:      t.Agent,
				Arguments: string(raw),
			},
		})
	}

	msg := ChatMessage{Role: "assistant"}
	if len(blocks) > 0 {
		msg.Content = blocks
	}
	msg.ToolCalls = toolCalls
	return msg
}

// TaskToToolMessage converts a completed task into its tool response
// message. The task must carry a result.
func TaskToToolMessage(t *CompressedTask) (ChatMessage, error) {
	if t.Result == nil {
		return ChatMessage{}, fmt.Errorf("task %s has no result", t.UniqueID)
	}
	return NewToolMessage(t.UniqueID, t.Result), nil
}

// TaskBatchToThread renders child batches as a message thread: per batch an
// assistant message followed by tool responses for its completed tasks.
// Rendering stops after the first batch that still has pending tasks, since
// the LLM cannot see past unresolved calls. Native web search tasks are
// omitted; the provider already folds their results into the content.
func TaskBatchToThread(batches [][]*CompressedTask) []ChatMessage {
	var thread []ChatMessage
	for _, batch := range batches {
		if len(batch) == 0 {
			continue
		}

		var completed, pending []*CompressedTask
		for _, t := range batch {
			if t.Result != nil {
				completed = append(completed, t)
			} else {
				pending = append(pending, t)
			}
		}

		var visible []*CompressedTask
		for _, t := range append(append([]*CompressedTask{}, completed...), pending...) {
			if t.Agent != AgentWebSearch {
				visible = append(visible, t)
			}
		}
		if len(visible) > 0 {
			thread = append(thread, TasksToAssistantMessage(visible))
		}

		for _, t := range completed {
			if t.Agent == AgentTalkToUser || t.Agent == AgentWebSearch {
				continue
			}
			msg, err := TaskToToolMessage(t)
			if err != nil {
				continue
			}
			thread = append(thread, msg)
		}

		if len(pending) > 0 {
			break
		}
	}
	return thread
}

// RootTasksToThread converts root task history into an LLM thread. Each
// root contributes its goal as a user message, its child batches as the
// intervening tool exchange, and its result, when present, as a closing
// assistant message.
func RootTasksToThread(rootTasks []*CompressedTask, orch *Orchestrator) []ChatMessage {
	var thread []ChatMessage
	for _, root := range rootTasks {
		goal := any("")
		if v, ok := root.Args["goal"]; ok {
			goal = v
		}
		thread = append(thread, ChatMessage{Role: "user", Content: goal})

		if batches, err := orch.Children(root.UniqueID); err == nil {
			thread = append(thread, TaskBatchToThread(batches)...)
		}

		if root.Result != nil {
			content := root.Result
			if m, ok := content.(map[string]any); ok {
				content = m["content"]
			}
			if content != nil && content != "" {
				thread = append(thread, ChatMessage{Role: "assistant", Content: content})
			}
		}
	}
	return thread
}
