// Package observability provides the metrics, tracing and logging hooks used
// by the mutation controller, the cache and the board service.
package observability

import (
	"context"
	"time"
)

// MetricsRecorder receives the outcome of every observed operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around observed operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

// NoopMetrics discards observations.
type NoopMetrics struct{}

// Observe implements MetricsRecorder.
func (NoopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// NoopTracer produces spans that record nothing.
type NoopTracer struct{}

// Start implements Tracer.
func (NoopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// Status renders a success flag the way exporters label it.
func Status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
