// Package observability holds inkwell's Prometheus collectors and a small
// in-process operation tracer used to inspect recent sync runs.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Operation Spans
// ═══════════════════════════════════════════════════════════════════════════

// SpanStatus indicates success/failure.
type SpanStatus string

const (
	SpanOK        SpanStatus = "ok"
	SpanError     SpanStatus = "error"
	SpanDiscarded SpanStatus = "discarded"
)

// Span is one timed operation (a sync run, a push, a pull).
type Span struct {
	ID        string            `json:"id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Duration  time.Duration     `json:"duration_ns"`
	Status    SpanStatus        `json:"status"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// ─── Tracer ─────────────────────────────────────────────────────────────────

// Tracer keeps the most recent finished spans in a bounded buffer.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	enabled  bool
	now      func() time.Time
}

// TracerConfig configures the tracer.
type TracerConfig struct {
	Enabled  bool `toml:"enabled"`
	MaxSpans int  `toml:"max_spans"` // buffer size (default 200)
}

// DefaultTracerConfig returns production defaults.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		Enabled:  true,
		MaxSpans: 200,
	}
}

// NewTracer creates a new tracer.
func NewTracer(cfg TracerConfig) *Tracer {
	if cfg.MaxSpans <= 0 {
		cfg.MaxSpans = DefaultTracerConfig().MaxSpans
	}
	return &Tracer{
		spans:    make([]Span, 0, cfg.MaxSpans),
		maxSpans: cfg.MaxSpans,
		enabled:  cfg.Enabled,
		now:      time.Now,
	}
}

// Start begins a span. The returned context carries the span so nested
// operations record it as their parent. A nil tracer is valid and records nothing.
func (t *Tracer) Start(ctx context.Context, operation string, attrs map[string]string) (context.Context, *Span) {
	if t == nil || !t.enabled {
		return ctx, &Span{Operation: operation}
	}

	span := &Span{
		ID:        uuid.NewString(),
		ParentID:  parentFromContext(ctx),
		Operation: operation,
		StartTime: t.now(),
		Status:    SpanOK,
		Attrs:     attrs,
	}
	return context.WithValue(ctx, spanKey{}, span.ID), span
}

// End finishes a span with the outcome of err and records it.
func (t *Tracer) End(span *Span, err error) {
	if err != nil {
		t.finish(span, SpanError, err.Error())
		return
	}
	t.finish(span, SpanOK, "")
}

// Discard finishes a span whose outcome was thrown away.
func (t *Tracer) Discard(span *Span) {
	t.finish(span, SpanDiscarded, "")
}

func (t *Tracer) finish(span *Span, status SpanStatus, errMsg string) {
	if t == nil || !t.enabled || span == nil || span.ID == "" {
		return
	}

	span.EndTime = t.now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	span.Status = status
	if errMsg != "" {
		if span.Attrs == nil {
			span.Attrs = make(map[string]string)
		}
		span.Attrs["error"] = errMsg
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns up to limit recent spans, newest first.
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}

	out := make([]Span, 0, limit)
	for i := len(t.spans) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, t.spans[i])
	}
	return out
}

// SpanCount returns the number of recorded spans.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// Reset clears all recorded spans.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = t.spans[:0]
}

type spanKey struct{}

func parentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(spanKey{}).(string); ok {
		return v
	}
	return ""
}

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Points Metrics ─────────────────────────────────────────────────────────

// PointsBalance tracks the current ledger balance.
var PointsBalance = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "inkwell",
	Subsystem: "points",
	Name:      "balance",
	Help:      "Current points balance.",
})

// PointsTransactions counts applied ledger movements.
var PointsTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "inkwell",
	Subsystem: "points",
	Name:      "transactions_total",
	Help:      "Total applied transactions by kind and category.",
}, []string{"kind", "category"})

// PointsRejected counts spends refused for insufficient balance.
var PointsRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "inkwell",
	Subsystem: "points",
	Name:      "rejected_spends_total",
	Help:      "Total spend attempts rejected for insufficient balance.",
})

// DailyRewards counts granted daily rewards.
var DailyRewards = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "inkwell",
	Subsystem: "points",
	Name:      "daily_rewards_total",
	Help:      "Total daily rewards granted.",
})

// ─── Notification Metrics ───────────────────────────────────────────────────

// NotificationsAdded counts stored notifications by type.
var NotificationsAdded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "inkwell",
	Subsystem: "notifications",
	Name:      "added_total",
	Help:      "Total notifications added by type.",
}, []string{"type"})

// NotificationsDeduplicated counts notifications dropped inside the dedup window.
var NotificationsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "inkwell",
	Subsystem: "notifications",
	Name:      "deduplicated_total",
	Help:      "Total notifications dropped as duplicates.",
})

// ActiveToasts tracks the visible toast queue length.
var ActiveToasts = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "inkwell",
	Subsystem: "notifications",
	Name:      "active_toasts",
	Help:      "Number of toasts currently visible.",
})

// ─── Sync Metrics ───────────────────────────────────────────────────────────

// SyncRuns counts sync attempts and online-edit pushes by result.
var SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "inkwell",
	Subsystem: "sync",
	Name:      "runs_total",
	Help:      "Total sync attempts by result.",
}, []string{"result"})

// SyncDuration tracks reconciliation latency.
var SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "inkwell",
	Subsystem: "sync",
	Name:      "duration_seconds",
	Help:      "Duration of push+pull reconciliation.",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
})

// PendingChanges tracks the derived pending change count.
var PendingChanges = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "inkwell",
	Subsystem: "sync",
	Name:      "pending_changes",
	Help:      "Notes mutated since the last successful sync.",
})

// Online is 1 while the remote store is considered reachable.
var Online = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "inkwell",
	Subsystem: "connectivity",
	Name:      "online",
	Help:      "Whether the remote store is reachable (1) or not (0).",
})

// ConnectivityTransitions counts online/offline flips.
var ConnectivityTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "inkwell",
	Subsystem: "connectivity",
	Name:      "transitions_total",
	Help:      "Total connectivity transitions by direction.",
}, []string{"to"})

// ─── HTTP Metrics ───────────────────────────────────────────────────────────

// HTTPRequests counts API requests by route pattern and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "inkwell",
	Subsystem: "api",
	Name:      "requests_total",
	Help:      "Total HTTP requests by route and status code.",
}, []string{"route", "code"})

// BoolGauge converts a flag to a gauge value.
func BoolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
