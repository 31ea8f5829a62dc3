package observer

import (
	"context"
	"strings"

	minusx "github.com/minusxai/minusx"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
)

// TaskCompletionHook returns a callback suitable for minusx.OnToolCompleted
// that records metrics and a structured log for every settled task. Per-task
// spans come separately from the orchestrator via NewTracer.
func TaskCompletionHook(inst *Instruments) func(*minusx.CompressedTask) {
	return func(t *minusx.CompressedTask) {
		ctx := context.Background()

		status := "ok"
		if s, ok := t.Result.(string); ok && strings.HasPrefix(s, "<ERROR>") {
			status = "error"
		}

		inst.TaskExecutions.Add(ctx, 1, metric.WithAttributes(
			AttrTaskAgent.String(t.Agent),
			AttrTaskStatus.String(status),
		))

		durationMs := 0.0
		if t.Debug != nil {
			durationMs = t.Debug.Duration * 1000
			inst.TaskDuration.Record(ctx, durationMs, metric.WithAttributes(
				AttrTaskAgent.String(t.Agent),
			))
		}

		var rec otellog.Record
		rec.SetSeverity(otellog.SeverityInfo)
		rec.SetBody(otellog.StringValue("task settled"))
		rec.AddAttributes(
			otellog.String("task.agent", t.Agent),
			otellog.String("task.unique_id", t.UniqueID),
			otellog.String("task.status", status),
			otellog.Float64("task.duration_ms", durationMs),
		)
		inst.Logger.Emit(ctx, rec)
	}
}
