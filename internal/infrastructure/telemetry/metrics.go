package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrStatus  = attribute.Key("status")
	AttrOutcome = attribute.Key("outcome")
	AttrSource  = attribute.Key("source")
)

// Counter wraps an Int64Counter
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a counter on meter
func NewCounter(meter metric.Meter, name, description, unit string) (*Counter, error) {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return &Counter{counter: c}, nil
}

// Add increments the counter by value
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Histogram wraps a Float64Histogram
type Histogram struct {
	histogram metric.Float64Histogram
}

// NewHistogram creates a histogram on meter
func NewHistogram(meter metric.Meter, name, description, unit string) (*Histogram, error) {
	h, err := meter.Float64Histogram(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return &Histogram{histogram: h}, nil
}

// Record records value
func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// RunMetrics records commission run activity. A nil *RunMetrics is a no-op.
type RunMetrics struct {
	runs        *Counter
	drafts      *Counter
	failures    *Counter
	allocations *Counter
	commission  *Histogram
	duration    *Histogram
}

// NewRunMetrics registers the run instruments on meter, or on the global
// meter provider when meter is nil.
func NewRunMetrics(meter metric.Meter) (*RunMetrics, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(TracerName)
	}
	m := &RunMetrics{}
	var err error
	if m.runs, err = NewCounter(meter, "erp_commission_runs_total", "Commission runs by final status", "{runs}"); err != nil {
		return nil, err
	}
	if m.drafts, err = NewCounter(meter, "erp_commission_drafts_total", "Payroll drafts written by outcome", "{drafts}"); err != nil {
		return nil, err
	}
	if m.failures, err = NewCounter(meter, "erp_commission_errors_total", "Per-salesperson failures", "{errors}"); err != nil {
		return nil, err
	}
	if m.allocations, err = NewCounter(meter, "erp_commission_allocations_total", "Settled invoice allocations read", "{rows}"); err != nil {
		return nil, err
	}
	if m.commission, err = NewHistogram(meter, "erp_commission_amount", "Commission amount per salesperson", "{currency}"); err != nil {
		return nil, err
	}
	if m.duration, err = NewHistogram(meter, "erp_commission_run_duration_seconds", "Commission run duration", "s"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRun records a finished run
func (m *RunMetrics) RecordRun(ctx context.Context, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.Add(ctx, 1, AttrStatus.String(status))
	m.duration.Record(ctx, elapsed.Seconds(), AttrStatus.String(status))
}

// RecordDraft records one draft outcome with its amount
func (m *RunMetrics) RecordDraft(ctx context.Context, outcome string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.drafts.Add(ctx, 1, AttrOutcome.String(outcome))
	m.commission.Record(ctx, amount.InexactFloat64(), AttrOutcome.String(outcome))
}

// RecordFailure counts a per-salesperson failure
func (m *RunMetrics) RecordFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.failures.Add(ctx, 1)
}

// RecordAllocations counts allocation rows read from one source
func (m *RunMetrics) RecordAllocations(ctx context.Context, source string, rows int) {
	if m == nil {
		return
	}
	m.allocations.Add(ctx, int64(rows), AttrSource.String(source))
}
