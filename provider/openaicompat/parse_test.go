package openaicompat

import (
	"testing"

	minusx "github.com/minusxai/minusx"
)

func TestAssembleResponse_TextOnly(t *testing.T) {
	sr := &StreamResult{
		Content:      "Revenue is up 12%.",
		FinishReason: "stop",
		Usage:        &Usage{PromptTokens: 20, CompletionTokens: 9, TotalTokens: 29},
	}

	resp := AssembleResponse(sr, "call_abc123")

	if resp.Role != "assistant" {
		t.Errorf("Role = %q, want %q", resp.Role, "assistant")
	}
	if resp.Content != "Revenue is up 12%." {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.StreamID != "call_abc123" {
		t.Errorf("StreamID = %q", resp.StreamID)
	}
	if len(resp.ContentBlocks) != 1 {
		t.Fatalf("got %d content blocks, want 1", len(resp.ContentBlocks))
	}
	block := resp.ContentBlocks[0]
	if block["type"] != "text" || block["text"] != "Revenue is up 12%." {
		t.Errorf("text block = %v", block)
	}
	if resp.Usage.InputTokens != 20 || resp.Usage.OutputTokens != 9 {
		t.Errorf("Usage = %+v", resp.Usage)
	}

	// Collections marshal as arrays, never null.
	if resp.Citations == nil || resp.WebSearchResults == nil || resp.ToolCalls == nil {
		t.Error("citations, search results, and tool calls must be non-nil")
	}
}

func TestAssembleResponse_EmptyContentNoTextBlock(t *testing.T) {
	resp := AssembleResponse(&StreamResult{FinishReason: "tool_calls"}, "call_1")

	if len(resp.ContentBlocks) != 0 {
		t.Errorf("got %d content blocks, want 0", len(resp.ContentBlocks))
	}
	if resp.Usage.InputTokens != 0 || resp.Usage.OutputTokens != 0 {
		t.Errorf("Usage = %+v, want zeros without a usage chunk", resp.Usage)
	}
}

func TestAssembleResponse_FiltersServerToolCalls(t *testing.T) {
	sr := &StreamResult{
		ToolCalls: []minusx.RawToolCall{
			{ID: "call_real", Type: "function", Function: minusx.RawFunction{Name: "ExecuteSQLQuery", Arguments: "{}"}},
			{ID: "srvtoolu_web", Type: "function", Function: minusx.RawFunction{Name: "web_search", Arguments: "{}"}},
			{ID: "", Type: "function", Function: minusx.RawFunction{Name: "orphan", Arguments: "{}"}},
		},
	}

	resp := AssembleResponse(sr, "call_1")

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].ID != "call_real" {
		t.Errorf("kept call = %q, want %q", resp.ToolCalls[0].ID, "call_real")
	}
}

func TestAssembleResponse_SearchBlocksFollowText(t *testing.T) {
	searchBlock := map[string]any{
		"type":        "web_search_tool_result",
		"tool_use_id": "srvtoolu_1",
		"content":     []any{map[string]any{"type": "web_search_result", "url": "https://example.com"}},
	}
	sr := &StreamResult{
		Content:          "Found it.",
		WebSearchResults: []map[string]any{searchBlock},
		Citations:        []any{map[string]any{"url": "https://example.com"}},
	}

	resp := AssembleResponse(sr, "call_1")

	if len(resp.ContentBlocks) != 2 {
		t.Fatalf("got %d content blocks, want 2", len(resp.ContentBlocks))
	}
	if resp.ContentBlocks[0]["type"] != "text" {
		t.Errorf("first block = %v, want text", resp.ContentBlocks[0])
	}
	if resp.ContentBlocks[1]["type"] != "web_search_tool_result" {
		t.Errorf("second block = %v, want search result", resp.ContentBlocks[1])
	}
	if len(resp.Citations) != 1 {
		t.Errorf("got %d citations, want 1", len(resp.Citations))
	}
}
