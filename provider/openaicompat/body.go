package openaicompat

import (
	"strings"

	minusx "github.com/minusxai/minusx"
)

// BuildBody converts a bridge request into a chat completions body shaped
// for the target model family. Every request streams with usage included.
//
// Family rules:
//   - o1 / o4-mini: temperature locked to 1, plain max_tokens budget.
//   - gpt-5: triple completion budget, high reasoning effort and verbosity.
//   - claude: double completion budget, tool choice forced to auto, cache
//     checkpoints on the first message and last tool, optional web search.
//   - everything else: plain completion budget at temperature 0.
func BuildBody(messages []minusx.ChatMessage, tools []map[string]any, model string, settings *minusx.LLMSettings, userInfo *minusx.UserInfo, maxTokens int) ChatRequest {
	if settings == nil {
		settings = &minusx.LLMSettings{
			ResponseFormat: map[string]any{"type": "text"},
			ToolChoice:     minusx.ToolChoiceRequired,
		}
	}

	if tools == nil {
		tools = []map[string]any{}
	}

	req := ChatRequest{
		Model:          model,
		Messages:       messages,
		ResponseFormat: settings.ResponseFormat,
		ToolChoice:     settings.ToolChoice,
		Tools:          tools,
		DropParams:     true,
		Stream:         true,
		StreamOptions:  &StreamOptions{IncludeUsage: true},
	}
	if userInfo != nil {
		req.User = userInfo.Email
	}

	switch {
	case model == "o1" || model == "o4-mini":
		req.Temperature = f64(1)
		req.MaxTokens = maxTokens

	case strings.Contains(model, "gpt-5"):
		req.MaxCompletionTokens = maxTokens * 3
		req.ReasoningEffort = "high"
		req.Verbosity = "high"

	case strings.Contains(model, "claude"):
		req.MaxCompletionTokens = maxTokens * 2
		req.Temperature = f64(0)
		req.ToolChoice = minusx.ToolChoiceAuto
		req.Messages = withFirstMessageCached(messages)
		req.Tools = withLastToolCached(tools)

		if settings.IncludeWebSearch {
			search := map[string]any{"search_context_size": "medium"}
			if userInfo != nil && userInfo.City != "" {
				search["user_location"] = map[string]any{
					"type":        "approximate",
					"approximate": map[string]any{"city": userInfo.City},
				}
			}
			req.WebSearchOptions = search
		}

	default:
		req.MaxCompletionTokens = maxTokens
		req.Temperature = f64(0)
	}

	return req
}

// withFirstMessageCached marks the first message as a prompt cache
// checkpoint. String content is promoted to a block list; block-list
// content gets the marker on its last block. The input is not mutated.
func withFirstMessageCached(messages []minusx.ChatMessage) []minusx.ChatMessage {
	if len(messages) == 0 {
		return messages
	}

	out := make([]minusx.ChatMessage, len(messages))
	copy(out, messages)

	first := out[0]
	switch content := first.Content.(type) {
	case string:
		first.Content = []any{map[string]any{
			"type":          "text",
			"text":          content,
			"cache_control": cacheControl(),
		}}
	case map[string]any:
		patched := shallowCopy(content)
		patched["cache_control"] = cacheControl()
		first.Content = patched
	case []any:
		first.Content = blocksWithLastCached(content)
	case []map[string]any:
		blocks := make([]any, len(content))
		for i, b := range content {
			blocks[i] = b
		}
		first.Content = blocksWithLastCached(blocks)
	}
	out[0] = first
	return out
}

func blocksWithLastCached(blocks []any) []any {
	if len(blocks) == 0 {
		return blocks
	}
	out := make([]any, len(blocks))
	copy(out, blocks)
	if last, ok := out[len(out)-1].(map[string]any); ok {
		patched := shallowCopy(last)
		patched["cache_control"] = cacheControl()
		out[len(out)-1] = patched
	}
	return out
}

// withLastToolCached marks the last tool schema's function as a prompt
// cache checkpoint. The input is not mutated.
func withLastToolCached(tools []map[string]any) []map[string]any {
	if len(tools) == 0 {
		return tools
	}

	out := make([]map[string]any, len(tools))
	copy(out, tools)

	last := shallowCopy(out[len(out)-1])
	if fn, ok := last["function"].(map[string]any); ok {
		patched := shallowCopy(fn)
		patched["cache_control"] = cacheControl()
		last["function"] = patched
	}
	out[len(out)-1] = last
	return out
}

func cacheControl() map[string]any {
	return map[string]any{"type": "ephemeral"}
}

func shallowCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func f64(v float64) *float64 { return &v }
