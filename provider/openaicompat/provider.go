package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	minusx "github.com/minusxai/minusx"
)

// LiteLLM proxy response headers carrying per-call accounting.
const (
	headerCost     = "x-litellm-response-cost"
	headerCallID   = "x-litellm-call-id"
	headerOverhead = "x-litellm-overhead-duration-ms"
)

const defaultMaxTokens = 4000

// Provider implements minusx.Provider over any OpenAI-compatible chat
// completions API. Pointing it at a LiteLLM proxy additionally yields
// cost, call id, and overhead accounting from response headers.
//
// Works with OpenAI, Anthropic (via proxy), Groq, Together, Fireworks,
// DeepSeek, Mistral, Ollama, vLLM, and anything else that implements the
// chat completions API.
type Provider struct {
	apiKey    string
	model     string
	baseURL   string
	client    *http.Client
	name      string
	maxTokens int
	logger    *slog.Logger
}

// NewProvider creates an OpenAI-compatible streaming chat provider.
//
// baseURL is the API base (e.g. "https://api.openai.com/v1" or a LiteLLM
// proxy address). The /chat/completions path is appended automatically.
// model is the default used when a request's settings name none.
func NewProvider(apiKey, model, baseURL string, opts ...ProviderOption) *Provider {
	p := &Provider{
		apiKey:    apiKey,
		model:     model,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 120 * time.Second},
		name:      "openaicompat",
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name (default "openaicompat", configurable via WithName).
func (p *Provider) Name() string { return p.name }

// Complete sends one streaming chat completion and returns the assembled
// response once the stream ends. Text deltas are forwarded to
// req.OnContent together with a fresh stream id, and an LLMDebug record is
// appended to the task debug collector carried by ctx.
func (p *Provider) Complete(ctx context.Context, req minusx.CompletionRequest) (*minusx.LLMResponse, error) {
	settings := req.Settings
	if settings == nil {
		settings = &minusx.LLMSettings{
			Model:          p.model,
			ResponseFormat: map[string]any{"type": "text"},
			ToolChoice:     minusx.ToolChoiceRequired,
		}
	}
	model := settings.Model
	if model == "" {
		model = p.model
	}

	body := BuildBody(req.Messages, req.Tools, model, settings, req.UserInfo, p.maxTokens)

	if p.logger != nil {
		p.logger.Debug("chat completion request",
			"model", model,
			"messages", len(body.Messages),
			"tools", len(body.Tools))
	}

	start := time.Now()
	resp, err := p.sendHTTP(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.httpErr(resp)
	}

	// One stream id per call, threaded through content callbacks so the
	// client can attribute chunks to this completion.
	streamID := minusx.NewStreamID()
	var onContent func(string)
	if req.OnContent != nil {
		cb := req.OnContent
		onContent = func(chunk string) { cb(chunk, streamID) }
	}

	sr, err := StreamSSE(ctx, resp.Body, onContent)
	if err != nil {
		return nil, err
	}
	duration := time.Since(start).Seconds()

	out := AssembleResponse(sr, streamID)
	p.recordDebug(ctx, body, sr, out, resp.Header, duration)
	return out, nil
}

// recordDebug appends the accounting record for this call to the task
// debug collector. Cost prefers the usage block (when the proxy includes
// cost in streaming usage) over the response header.
func (p *Provider) recordDebug(ctx context.Context, body ChatRequest, sr *StreamResult, out *minusx.LLMResponse, hdr http.Header, duration float64) {
	usage := sr.Usage
	if usage == nil {
		usage = &Usage{}
	}

	cost := headerFloat(hdr, headerCost)
	if usage.Cost != nil {
		cost = *usage.Cost
	}

	extra := map[string]any{}
	if raw, err := json.Marshal(body); err == nil {
		_ = json.Unmarshal(raw, &extra)
	}
	extra["response"] = out

	minusx.TaskDebugFromContext(ctx).AddLLM(&minusx.LLMDebug{
		Model:                   body.Model,
		Duration:                duration,
		TotalTokens:             usage.TotalTokens,
		PromptTokens:            usage.PromptTokens,
		CompletionTokens:        usage.CompletionTokens,
		Cost:                    cost,
		CompletionTokensDetails: orEmpty(usage.CompletionTokensDetails),
		PromptTokensDetails:     orEmpty(usage.PromptTokensDetails),
		FinishReason:            sr.FinishReason,
		CallID:                  hdr.Get(headerCallID),
		OverheadMS:              headerFloat(hdr, headerOverhead),
		Extra:                   extra,
	})
}

// sendHTTP marshals the request body and sends it to the chat completions endpoint.
func (p *Provider) sendHTTP(ctx context.Context, body ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &minusx.ErrLLM{Provider: p.name, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	url := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &minusx.ErrLLM{Provider: p.name, Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	return p.client.Do(httpReq)
}

// httpErr reads the response body and returns an ErrHTTP for retry middleware.
// Parses the Retry-After header when present (429/503 responses).
func (p *Provider) httpErr(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &minusx.ErrHTTP{
		Status:     resp.StatusCode,
		Body:       string(body),
		RetryAfter: minusx.ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

func headerFloat(hdr http.Header, key string) float64 {
	v := hdr.Get(key)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// Compile-time interface check.
var _ minusx.Provider = (*Provider)(nil)
