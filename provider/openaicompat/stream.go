package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	minusx "github.com/minusxai/minusx"
)

// StreamResult is the raw accumulation of one SSE stream: concatenated
// text, assembled tool calls (server-side ones included), passthrough
// search data, and the usage block if the stream carried one.
type StreamResult struct {
	Content          string
	ToolCalls        []minusx.RawToolCall
	FinishReason     string
	Citations        []any
	WebSearchResults []map[string]any
	Usage            *Usage
}

// StreamSSE reads an SSE stream from body and accumulates it into a
// StreamResult. onContent, when non-nil, is invoked synchronously with
// each text delta as it arrives.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	data: [DONE]\n
func StreamSSE(ctx context.Context, body io.Reader, onContent func(chunk string)) (*StreamResult, error) {
	scanner := bufio.NewScanner(body)
	// Increase buffer for large SSE payloads.
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	res := &StreamResult{}
	var content strings.Builder

	// Tool calls stream incrementally: each fragment carries an index,
	// ids and names arrive once, arguments arrive as string pieces.
	type partialCall struct {
		id   string
		name string
		args strings.Builder
	}
	var calls []*partialCall

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := scanner.Text()

		// SSE lines that carry data start with "data: ".
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		// End-of-stream sentinel.
		if data == "[DONE]" {
			break
		}

		var chunk ChatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed chunks.
			continue
		}

		// Usage usually arrives in the final chunk, sometimes with no choices.
		if chunk.Usage != nil {
			res.Usage = chunk.Usage
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			res.FinishReason = choice.FinishReason
		}

		delta := choice.Delta
		if delta == nil {
			continue
		}

		if delta.Content != "" {
			content.WriteString(delta.Content)
			if onContent != nil {
				onContent(delta.Content)
			}
		}

		for _, tc := range delta.ToolCalls {
			idx := tc.Index
			if idx < 0 {
				continue
			}
			for len(calls) <= idx {
				calls = append(calls, &partialCall{})
			}
			if tc.ID != "" {
				calls[idx].id = tc.ID
			}
			if tc.Function.Name != "" {
				calls[idx].name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				calls[idx].args.WriteString(tc.Function.Arguments)
			}
		}

		if fields := delta.ProviderSpecificFields; fields != nil {
			if fields.Citation != nil {
				res.Citations = append(res.Citations, fields.Citation)
			}
			if len(fields.WebSearchResults) > 0 {
				res.WebSearchResults = append(res.WebSearchResults, fields.WebSearchResults...)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	res.Content = content.String()
	for _, c := range calls {
		// Arguments stay the raw concatenation; invalid JSON is surfaced
		// downstream as an agent call error, not silently repaired here.
		res.ToolCalls = append(res.ToolCalls, minusx.RawToolCall{
			ID:   c.id,
			Type: "function",
			Function: minusx.RawFunction{
				Name:      c.name,
				Arguments: c.args.String(),
			},
		})
	}
	return res, nil
}
