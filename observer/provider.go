package observer

import (
	"context"
	"time"

	minusx "github.com/minusxai/minusx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedProvider wraps a minusx.Provider with OTEL instrumentation.
type ObservedProvider struct {
	inner minusx.Provider
	inst  *Instruments
	model string
}

// WrapProvider returns an instrumented provider that emits traces, metrics,
// and logs. The model argument is the fallback used for span attributes and
// cost when a request carries no settings.
func WrapProvider(inner minusx.Provider, model string, inst *Instruments) *ObservedProvider {
	return &ObservedProvider{inner: inner, inst: inst, model: model}
}

func (o *ObservedProvider) Name() string { return o.inner.Name() }

func (o *ObservedProvider) Complete(ctx context.Context, req minusx.CompletionRequest) (*minusx.LLMResponse, error) {
	model := o.model
	if req.Settings != nil && req.Settings.Model != "" {
		model = req.Settings.Model
	}

	spanAttrs := []trace.SpanStartOption{
		trace.WithAttributes(
			AttrLLMModel.String(model),
			AttrLLMProvider.String(o.inner.Name()),
		),
	}
	if len(req.Tools) > 0 {
		spanAttrs = append(spanAttrs, trace.WithAttributes(
			AttrToolCount.Int(len(req.Tools)),
			AttrToolNames.StringSlice(toolNames(req.Tools)),
		))
	}

	ctx, span := o.inst.Tracer.Start(ctx, "llm.complete", spanAttrs...)
	defer span.End()
	start := time.Now()

	// Wrap the content callback to count streamed chunks. The provider
	// invokes it synchronously from the SSE read loop.
	chunks := 0
	forward := req.OnContent
	req.OnContent = func(chunk, streamID string) {
		chunks++
		if forward != nil {
			forward(chunk, streamID)
		}
	}

	resp, err := o.inner.Complete(ctx, req)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	var usage minusx.Usage
	if resp != nil {
		usage = resp.Usage
		if resp.FinishReason != "" {
			span.SetAttributes(AttrFinishReason.String(resp.FinishReason))
		}
	}
	span.SetAttributes(AttrStreamChunks.Int(chunks))

	o.record(ctx, span, model, status, durationMs, usage)
	return resp, err
}

func (o *ObservedProvider) record(ctx context.Context, span trace.Span, model, status string, durationMs float64, usage minusx.Usage) {
	cost := o.inst.Cost.Calculate(model, usage.InputTokens, usage.OutputTokens)

	attrs := metric.WithAttributes(
		AttrLLMModel.String(model),
		AttrLLMProvider.String(o.inner.Name()),
	)

	span.SetAttributes(
		AttrTokensInput.Int(usage.InputTokens),
		AttrTokensOutput.Int(usage.OutputTokens),
		AttrCostUSD.Float64(cost),
	)

	o.inst.TokenUsage.Add(ctx, int64(usage.InputTokens), metric.WithAttributes(
		AttrLLMModel.String(model),
		AttrLLMProvider.String(o.inner.Name()),
		attribute.String("direction", "input"),
	))
	o.inst.TokenUsage.Add(ctx, int64(usage.OutputTokens), metric.WithAttributes(
		AttrLLMModel.String(model),
		AttrLLMProvider.String(o.inner.Name()),
		attribute.String("direction", "output"),
	))
	o.inst.CostTotal.Add(ctx, cost, attrs)
	o.inst.LLMRequests.Add(ctx, 1, metric.WithAttributes(
		AttrLLMModel.String(model),
		AttrLLMProvider.String(o.inner.Name()),
		attribute.String("status", status),
	))
	o.inst.LLMDuration.Record(ctx, durationMs, attrs)

	// Structured log
	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("llm call completed"))
	rec.AddAttributes(
		otellog.String("llm.model", model),
		otellog.String("llm.provider", o.inner.Name()),
		otellog.Int("llm.tokens.input", usage.InputTokens),
		otellog.Int("llm.tokens.output", usage.OutputTokens),
		otellog.Float64("llm.cost_usd", cost),
		otellog.Float64("llm.duration_ms", durationMs),
		otellog.String("status", status),
	)
	o.inst.Logger.Emit(ctx, rec)
}

// toolNames extracts function names from tool schemas shaped as
// {"type": "function", "function": {"name": ...}}.
func toolNames(tools []map[string]any) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		fn, ok := t["function"].(map[string]any)
		if !ok {
			continue
		}
		if name, ok := fn["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names
}

var _ minusx.Provider = (*ObservedProvider)(nil)
