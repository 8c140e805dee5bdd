// Package observability records operation spans and exports the Prometheus
// metrics for the credit engine.
//
// This provides:
//   - Spans for every orchestrator operation (role, outcome, error kind)
//   - Request id propagation through context
//   - Prometheus counters and gauges under the "veridi" namespace
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
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

func (s SpanStatus) String() string {
	if s == SpanError {
		return "error"
	}
	return "ok"
}

// Span is one orchestrator operation.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	Operation string            `json:"operation"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Status    SpanStatus        `json:"status"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// ─── Tracer ─────────────────────────────────────────────────────────────────

// Tracer keeps the most recent spans in memory for inspection.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	enabled  bool
}

// TracerConfig configures the tracer.
type TracerConfig struct {
	Enabled  bool
	MaxSpans int // ring buffer size (default 1_000)
}

// DefaultTracerConfig returns production defaults.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		Enabled:  true,
		MaxSpans: 1_000,
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
	}
}

// StartSpan begins a span for operation. The caller must call EndSpan.
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs map[string]string) *Span {
	if t == nil || !t.enabled {
		return &Span{Operation: operation, StartTime: time.Now()}
	}
	return &Span{
		TraceID:   TraceIDFromContext(ctx),
		SpanID:    uuid.NewString(),
		Operation: operation,
		StartTime: time.Now(),
		Status:    SpanOK,
		Attrs:     attrs,
	}
}

// EndSpan completes a span, records it and observes its duration.
func (t *Tracer) EndSpan(span *Span, err error) {
	if span == nil {
		return
	}
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	if err != nil {
		span.Status = SpanError
		if span.Attrs == nil {
			span.Attrs = make(map[string]string)
		}
		span.Attrs["error"] = err.Error()
	}

	OperationDuration.WithLabelValues(span.Operation).Observe(span.Duration.Seconds())
	OperationsTotal.WithLabelValues(span.Operation, span.Status.String()).Inc()

	if t == nil || !t.enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Ring buffer: drop oldest if at capacity
	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns a copy of the most recent spans, oldest first.
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}
	start := len(t.spans) - limit
	out := make([]Span, limit)
	copy(out, t.spans[start:])
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

// ─── Context Helpers ────────────────────────────────────────────────────────

type contextKey string

const traceIDKey contextKey = "veridi-trace-id"

// WithTraceID returns a context carrying the given trace id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext returns the trace id on ctx, or a fresh one.
func TraceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok && v != "" {
		return v
	}
	return uuid.NewString()
}

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Operation Metrics ──────────────────────────────────────────────────────

// OperationsTotal counts orchestrator operations by outcome.
var OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "veridi",
	Name:      "operations_total",
	Help:      "Total orchestrator operations by operation and outcome.",
}, []string{"op", "outcome"})

// OperationDuration tracks orchestrator operation latency.
var OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "veridi",
	Name:      "operation_duration_seconds",
	Help:      "Orchestrator operation latency in seconds.",
	Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
}, []string{"op"})

// ─── Payment Metrics ────────────────────────────────────────────────────────

// PaymentsTotal counts charges by outcome (success, declined, timeout, error).
var PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "veridi",
	Subsystem: "payment",
	Name:      "charges_total",
	Help:      "Total payment charges by outcome.",
}, []string{"outcome"})

// ─── Journal & Notification Metrics ─────────────────────────────────────────

// JournalWriteFailures counts swallowed writes to the append-only stores.
var JournalWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "veridi",
	Subsystem: "journal",
	Name:      "write_failures_total",
	Help:      "Writes to an append-only store that failed and were not escalated.",
}, []string{"store"})

// NotificationsTotal counts published regulatory notifications.
var NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "veridi",
	Subsystem: "notifications",
	Name:      "published_total",
	Help:      "Total regulatory notifications by action.",
}, []string{"action"})

// NotificationsEvicted counts notifications dropped by the capacity limit.
var NotificationsEvicted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "veridi",
	Subsystem: "notifications",
	Name:      "evicted_total",
	Help:      "Total notifications evicted from the capped feed.",
})

// ─── Compliance Metrics ─────────────────────────────────────────────────────

// MilestonesEmitted counts milestone notifications by band.
var MilestonesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "veridi",
	Subsystem: "compliance",
	Name:      "milestones_emitted_total",
	Help:      "Total compliance milestones emitted by band.",
}, []string{"band"})

// CertificatesIssued counts compliance certificates.
var CertificatesIssued = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "veridi",
	Subsystem: "compliance",
	Name:      "certificates_issued_total",
	Help:      "Total compliance certificates issued.",
})

// AuditRiskLevel is the risk level of the latest audit (0=low, 1=medium, 2=high).
var AuditRiskLevel = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "veridi",
	Subsystem: "audit",
	Name:      "risk_level",
	Help:      "Risk level of the most recent audit (0=low, 1=medium, 2=high).",
})

// ─── Pool Metrics ───────────────────────────────────────────────────────────

// PoolActive tracks operations currently holding a worker slot.
var PoolActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "veridi",
	Subsystem: "pool",
	Name:      "active",
	Help:      "Operations currently holding a worker slot.",
})

// PoolRejected counts operations that gave up waiting for a slot.
var PoolRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "veridi",
	Subsystem: "pool",
	Name:      "rejected_total",
	Help:      "Operations rejected because no worker slot freed in time.",
})
