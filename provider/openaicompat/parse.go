package openaicompat

import (
	"strings"

	minusx "github.com/minusxai/minusx"
)

// Server-side tool calls (web search) carry this id prefix. Their results
// arrive as content blocks, so the calls themselves are filtered out.
const serverToolPrefix = "srvtoolu_"

// AssembleResponse converts an accumulated stream into the bridge response
// shape. Content blocks hold the text block (when content is non-empty)
// followed by web search result blocks in receipt order; tool calls keep
// only client-side calls with ids.
func AssembleResponse(sr *StreamResult, streamID string) *minusx.LLMResponse {
	blocks := []map[string]any{}
	if sr.Content != "" {
		blocks = append(blocks, map[string]any{"type": "text", "text": sr.Content})
	}
	blocks = append(blocks, sr.WebSearchResults...)

	clientCalls := []minusx.RawToolCall{}
	for _, tc := range sr.ToolCalls {
		if tc.ID == "" || strings.HasPrefix(tc.ID, serverToolPrefix) {
			continue
		}
		clientCalls = append(clientCalls, tc)
	}

	citations := sr.Citations
	if citations == nil {
		citations = []any{}
	}
	searchResults := sr.WebSearchResults
	if searchResults == nil {
		searchResults = []map[string]any{}
	}

	var usage minusx.Usage
	if sr.Usage != nil {
		usage = minusx.Usage{
			InputTokens:  sr.Usage.PromptTokens,
			OutputTokens: sr.Usage.CompletionTokens,
		}
	}

	return &minusx.LLMResponse{
		Content:          sr.Content,
		ContentBlocks:    blocks,
		Role:             "assistant",
		ToolCalls:        clientCalls,
		StreamID:         streamID,
		FinishReason:     sr.FinishReason,
		Citations:        citations,
		WebSearchResults: searchResults,
		Usage:            usage,
	}
}
