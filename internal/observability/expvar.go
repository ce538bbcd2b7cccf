package observability

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq atomic.Uint64

const (
	expvarLatencyTotal = "latency_ms_total"
	expvarLatencyMax   = "latency_ms_max"
)

// ExpvarMetricsRecorder publishes one expvar.Map per operation under a single
// root map:
//
//	{"create_category": {"success": 3, "error": 1, "latency_ms_total": 12.5, "latency_ms_max": 6.1}}
type ExpvarMetricsRecorder struct {
	name string
	root *expvar.Map
	mu   sync.Mutex
}

// ExpvarMetricsSnapshot is a copy of the published values.
type ExpvarMetricsSnapshot struct {
	Results     map[string]map[string]int64 `json:"results_total"`
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	MaxMS       map[string]float64          `json:"durations_ms_max"`
}

// NewExpvarMetricsRecorder publishes a recorder under name. An empty name gets
// a generated one, since expvar names are process global.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("boardcore_metrics_%d", expvarSeq.Add(1))
	}
	return &ExpvarMetricsRecorder{name: name, root: expvar.NewMap(name)}
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.root.Get(operation).(*expvar.Map)
	if !ok {
		op = new(expvar.Map).Init()
		r.root.Set(operation, op)
	}
	op.Add(Status(success), 1)
	op.AddFloat(expvarLatencyTotal, ms)
	peak, ok := op.Get(expvarLatencyMax).(*expvar.Float)
	if !ok {
		peak = new(expvar.Float)
		op.Set(expvarLatencyMax, peak)
	}
	if ms > peak.Value() {
		peak.Set(ms)
	}
}

// Snapshot reads the published values back.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	snap := ExpvarMetricsSnapshot{
		Results:     make(map[string]map[string]int64),
		DurationsMS: make(map[string]float64),
		MaxMS:       make(map[string]float64),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.root.Do(func(kv expvar.KeyValue) {
		op, ok := kv.Value.(*expvar.Map)
		if !ok {
			return
		}
		counts := make(map[string]int64, 2)
		op.Do(func(field expvar.KeyValue) {
			switch v := field.Value.(type) {
			case *expvar.Int:
				counts[field.Key] = v.Value()
			case *expvar.Float:
				if field.Key == expvarLatencyTotal {
					snap.DurationsMS[kv.Key] = v.Value()
				} else {
					snap.MaxMS[kv.Key] = v.Value()
				}
			}
		})
		snap.Results[kv.Key] = counts
	})
	return snap
}
