package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	ctx := context.Background()
	rec.Observe(ctx, "create_category", true, 2*time.Millisecond)
	rec.Observe(ctx, "create_category", false, 3*time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	snap := rec.Snapshot()
	if snap.Results["create_category"]["success"] != 1 || snap.Results["create_category"]["error"] != 1 {
		t.Fatalf("unexpected results %+v", snap.Results)
	}
	if snap.DurationsMS["create_category"] < 5 {
		t.Fatalf("expected accumulated duration, got %v", snap.DurationsMS)
	}
	if snap.MaxMS["create_category"] != 3 {
		t.Fatalf("expected 3ms peak, got %v", snap.MaxMS)
	}
	if _, ok := snap.Results[""]; ok {
		t.Fatalf("empty operation must be ignored")
	}
	v := expvar.Get(rec.Name())
	if v == nil || !strings.Contains(v.String(), "create_category") {
		t.Fatalf("expected published expvar")
	}
}

func TestJSONTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "update_category")
	span.End(errors.New("boom"))
	span.End(nil)
	_, ok := tracer.Start(context.Background(), "delete_category")
	ok.End(nil)

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[0].Status != "error" || entries[0].Error != "boom" || entries[1].Status != "success" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Fatalf("expected 2 json lines, got %d", lines)
	}
	var decoded JSONTraceEntry
	line := strings.SplitN(buf.String(), "\n", 2)[0]
	if err := json.Unmarshal([]byte(line), &decoded); err != nil || decoded.Operation != "update_category" {
		t.Fatalf("expected json line, got %q (%v)", line, err)
	}
}

func TestJSONTracerRetention(t *testing.T) {
	tracer := NewJSONTracer(nil)
	tracer.retain = 2
	for _, op := range []string{"a", "b", "c"} {
		_, span := tracer.Start(context.Background(), op)
		span.End(nil)
	}
	entries := tracer.Entries()
	if len(entries) != 2 || entries[0].Operation != "b" || entries[1].Operation != "c" {
		t.Fatalf("expected the two newest spans, got %+v", entries)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg, "test")
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	rec.Observe(context.Background(), "reposition_category", true, time.Millisecond)
	rec.Observe(context.Background(), "reposition_category", false, time.Millisecond)
	if got := testutil.ToFloat64(rec.total.WithLabelValues("reposition_category", "success")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if _, err := NewPrometheusMetricsRecorder(reg, "test"); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestNoopTracerAndMetrics(t *testing.T) {
	NoopMetrics{}.Observe(context.Background(), "x", true, 0)
	ctx, span := NoopTracer{}.Start(context.Background(), "x")
	span.End(nil)
	if ctx == nil {
		t.Fatalf("expected context")
	}
}

func TestOTelTracerRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := NewOTelTracer(tp.Tracer("test"))

	ctx, span := tracer.Start(context.Background(), "create_category")
	if !trace.SpanFromContext(ctx).IsRecording() {
		t.Fatalf("expected a recording span in the returned context")
	}
	span.End(errors.New("boom"))
	_, ok := tracer.Start(context.Background(), "delete_category")
	ok.End(nil)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 ended spans, got %d", len(spans))
	}
	failed := spans[0]
	if failed.Name() != "create_category" || failed.Status().Code != codes.Error || failed.Status().Description != "boom" {
		t.Fatalf("unexpected failed span %s %+v", failed.Name(), failed.Status())
	}
	var operation string
	for _, kv := range failed.Attributes() {
		if kv.Key == operationAttribute {
			operation = kv.Value.AsString()
		}
	}
	if operation != "create_category" {
		t.Fatalf("expected operation attribute, got %q", operation)
	}
	if len(failed.Events()) == 0 || failed.Events()[0].Name != "exception" {
		t.Fatalf("expected recorded error event, got %+v", failed.Events())
	}
	if spans[1].Status().Code != codes.Ok {
		t.Fatalf("expected ok status, got %+v", spans[1].Status())
	}
}

func TestStartOTelExportsOnShutdown(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	tracer, shutdown, err := StartOTel(&buf, "boardcore-test")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_, span := tracer.Start(context.Background(), "reposition_category")
	span.End(nil)
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"Name":"reposition_category"`) || !strings.Contains(out, "boardcore-test") {
		t.Fatalf("expected exported span, got %q", out)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "debug", "json")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	logger.Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Fatalf("expected json output, got %q", buf.String())
	}
	if _, err := NewLogger(nil, "loud", "text"); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := NewLogger(nil, "info", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
	if lvl, _ := ParseLevel("WARN"); lvl.String() != "WARN" {
		t.Fatalf("unexpected level %v", lvl)
	}
	DiscardLogger().Info("dropped")
}
