package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ─── Tracer ─────────────────────────────────────────────────────────────────

func TestTracer_StartEnd_RecordsSpan(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())

	_, span := tr.Start(context.Background(), "sync", map[string]string{"mode": "manual"})
	tr.End(span, nil)

	if tr.SpanCount() != 1 {
		t.Fatalf("SpanCount() = %d, want 1", tr.SpanCount())
	}

	spans := tr.Spans(1)
	if spans[0].Operation != "sync" {
		t.Errorf("Operation = %q, want %q", spans[0].Operation, "sync")
	}
	if spans[0].Status != SpanOK {
		t.Errorf("Status = %q, want %q", spans[0].Status, SpanOK)
	}
	if spans[0].EndTime.Before(spans[0].StartTime) {
		t.Error("EndTime should not be before StartTime")
	}
	if spans[0].Attrs["mode"] != "manual" {
		t.Errorf("Attrs[mode] = %q, want %q", spans[0].Attrs["mode"], "manual")
	}
}

func TestTracer_End_RecordsError(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())

	_, span := tr.Start(context.Background(), "push", nil)
	tr.End(span, errors.New("boom"))

	spans := tr.Spans(1)
	if spans[0].Status != SpanError {
		t.Errorf("Status = %q, want %q", spans[0].Status, SpanError)
	}
	if spans[0].Attrs["error"] != "boom" {
		t.Errorf("error attr = %q, want %q", spans[0].Attrs["error"], "boom")
	}
}

func TestTracer_Discard(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())

	_, span := tr.Start(context.Background(), "sync", nil)
	tr.Discard(span)

	if got := tr.Spans(1)[0].Status; got != SpanDiscarded {
		t.Errorf("Status = %q, want %q", got, SpanDiscarded)
	}
}

func TestTracer_Disabled(t *testing.T) {
	tr := NewTracer(TracerConfig{Enabled: false, MaxSpans: 100})
	_, span := tr.Start(context.Background(), "noop", nil)
	tr.End(span, nil)

	if tr.SpanCount() != 0 {
		t.Errorf("disabled tracer SpanCount() = %d, want 0", tr.SpanCount())
	}
}

func TestTracer_Nil(t *testing.T) {
	var tr *Tracer
	ctx, span := tr.Start(context.Background(), "noop", nil)
	tr.End(span, nil)
	if ctx == nil || span == nil {
		t.Fatal("nil tracer must still return a usable context and span")
	}
}

func TestTracer_Buffer_Overflow(t *testing.T) {
	tr := NewTracer(TracerConfig{Enabled: true, MaxSpans: 3})

	for i := 0; i < 5; i++ {
		_, span := tr.Start(context.Background(), "op", nil)
		tr.End(span, nil)
	}

	if tr.SpanCount() != 3 {
		t.Errorf("SpanCount() = %d, want 3", tr.SpanCount())
	}
}

func TestTracer_Spans_NewestFirst(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	tr.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }

	for _, op := range []string{"a", "b", "c"} {
		_, span := tr.Start(context.Background(), op, nil)
		tr.End(span, nil)
	}

	spans := tr.Spans(2)
	if len(spans) != 2 {
		t.Fatalf("Spans(2) returned %d, want 2", len(spans))
	}
	if spans[0].Operation != "c" || spans[1].Operation != "b" {
		t.Errorf("order = %q,%q, want c,b", spans[0].Operation, spans[1].Operation)
	}
	if spans[0].Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", spans[0].Duration)
	}
}

func TestTracer_Spans_ZeroLimit(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	for i := 0; i < 5; i++ {
		_, span := tr.Start(context.Background(), "op", nil)
		tr.End(span, nil)
	}

	if spans := tr.Spans(0); len(spans) != 5 {
		t.Errorf("Spans(0) returned %d, want all 5", len(spans))
	}
}

func TestTracer_Reset(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	_, span := tr.Start(context.Background(), "op", nil)
	tr.End(span, nil)

	tr.Reset()
	if tr.SpanCount() != 0 {
		t.Errorf("SpanCount() after Reset = %d, want 0", tr.SpanCount())
	}
}

// ─── Context Propagation ────────────────────────────────────────────────────

func TestTracer_ParentFromContext(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())

	ctx, parent := tr.Start(context.Background(), "sync", nil)
	_, child := tr.Start(ctx, "push", nil)
	tr.End(child, nil)
	tr.End(parent, nil)

	if child.ParentID != parent.ID {
		t.Errorf("ParentID = %q, want %q", child.ParentID, parent.ID)
	}
	if parent.ParentID != "" {
		t.Errorf("root span ParentID = %q, want empty", parent.ParentID)
	}
}

func TestTracer_SpanIDUnique(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())

	_, span1 := tr.Start(context.Background(), "op1", nil)
	_, span2 := tr.Start(context.Background(), "op2", nil)

	if span1.ID == span2.ID {
		t.Errorf("span IDs should be unique, both = %q", span1.ID)
	}
}

func TestBoolGauge(t *testing.T) {
	if BoolGauge(true) != 1 || BoolGauge(false) != 0 {
		t.Error("BoolGauge should map true→1, false→0")
	}
}
