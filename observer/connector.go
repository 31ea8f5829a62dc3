package observer

import (
	"context"
	"time"

	"github.com/minusxai/minusx/connect"

	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedConnector wraps a connect.Connector with OTEL instrumentation.
type ObservedConnector struct {
	inner connect.Connector
	inst  *Instruments
	name  string
}

// WrapConnector returns a hook for connect.WithConnectorWrapper that
// instruments every connector the manager caches.
func WrapConnector(inst *Instruments) func(name string, c connect.Connector) connect.Connector {
	return func(name string, c connect.Connector) connect.Connector {
		return &ObservedConnector{inner: c, inst: inst, name: name}
	}
}

var _ connect.Connector = (*ObservedConnector)(nil)

func (o *ObservedConnector) Test(ctx context.Context) error {
	ctx, span := o.inst.Tracer.Start(ctx, "connection.test", trace.WithAttributes(
		AttrQueryConnection.String(o.name),
	))
	defer span.End()

	err := o.inner.Test(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *ObservedConnector) Schema(ctx context.Context, forceRefresh bool) ([]connect.Schema, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "connection.schema", trace.WithAttributes(
		AttrQueryConnection.String(o.name),
	))
	defer span.End()

	schemas, err := o.inner.Schema(ctx, forceRefresh)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return schemas, err
}

func (o *ObservedConnector) Query(ctx context.Context, sql string, params map[string]any) (*connect.QueryResult, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "query.execute", trace.WithAttributes(
		AttrQueryConnection.String(o.name),
	))
	defer span.End()
	start := time.Now()

	result, err := o.inner.Query(ctx, sql, params)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	rowCount := 0
	if result != nil {
		rowCount = len(result.Rows)
		span.SetAttributes(AttrQueryRows.Int(rowCount))
	}

	o.inst.QueryExecutions.Add(ctx, 1, metric.WithAttributes(
		AttrQueryConnection.String(o.name),
		AttrQueryStatus.String(status),
	))
	o.inst.QueryDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrQueryConnection.String(o.name),
	))

	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("query executed"))
	rec.AddAttributes(
		otellog.String("query.connection", o.name),
		otellog.String("query.status", status),
		otellog.Int("query.rows", rowCount),
		otellog.Float64("query.duration_ms", durationMs),
	)
	o.inst.Logger.Emit(ctx, rec)

	return result, err
}

func (o *ObservedConnector) Validate() []string { return o.inner.Validate() }

func (o *ObservedConnector) Close() error { return o.inner.Close() }
