package refresh

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("glitchls.refresh")
	meter  = otel.Meter("glitchls.refresh")
)

var (
	refreshTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		refreshTotal, metricsErr = meter.Int64Counter(
			"refreshes_total",
			metric.WithDescription("Total number of document refreshes by outcome"),
		)
	})
	return metricsErr
}

func startRefreshSpan(ctx context.Context, doc Document, seq uint64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Trigger.refresh",
		trace.WithAttributes(
			attribute.String("document.uri", doc.URI),
			attribute.Int64("refresh.seq", int64(seq)),
		),
	)
}

func recordOutcome(ctx context.Context, span trace.Span, outcome Outcome) {
	span.SetAttributes(attribute.String("refresh.outcome", outcome.String()))
	if err := initMetrics(); err != nil {
		return
	}
	refreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.String())))
}
