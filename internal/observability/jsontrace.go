package observability

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// defaultTraceRetention bounds the spans a JSONTraceTracer keeps in memory.
const defaultTraceRetention = 256

// JSONTraceEntry is one finished span.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes finished spans to w as JSON lines and keeps the most
// recent ones for inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	w       io.Writer
	retain  int
	entries []JSONTraceEntry
	now     func() time.Time
}

// NewJSONTracer returns a tracer writing to w. A nil writer only retains.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	return &JSONTraceTracer{
		w:      w,
		retain: defaultTraceRetention,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Entries returns the retained spans, oldest first.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{tracer: t, entry: JSONTraceEntry{Operation: operation, StartedAt: t.now()}}
}

func (t *JSONTraceTracer) finish(entry JSONTraceEntry) {
	line, err := json.Marshal(entry)
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == t.retain {
		t.entries = append(t.entries[:0], t.entries[1:]...)
	}
	t.entries = append(t.entries, entry)
	if t.w != nil && err == nil {
		_, _ = t.w.Write(append(line, '\n'))
	}
}

type jsonSpan struct {
	tracer *JSONTraceTracer
	entry  JSONTraceEntry
	once   sync.Once
}

func (s *jsonSpan) End(err error) {
	s.once.Do(func() {
		s.entry.EndedAt = s.tracer.now()
		s.entry.DurationMS = float64(s.entry.EndedAt.Sub(s.entry.StartedAt)) / float64(time.Millisecond)
		s.entry.Status = Status(err == nil)
		if err != nil {
			s.entry.Error = err.Error()
		}
		s.tracer.finish(s.entry)
	})
}
