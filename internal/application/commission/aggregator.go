package commission

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/erp/commission/internal/domain/commission"
	"github.com/erp/commission/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// traceSampleSize bounds how many rows per source are echoed into the trace
const traceSampleSize = 5

// RevenueAggregator sums fully settled invoice revenue per salesperson
// from the immediate and deferred settlement populations.
type RevenueAggregator struct {
	ledger  commission.InvoiceLedger
	logger  *zap.Logger
	metrics *telemetry.RunMetrics
}

// NewRevenueAggregator creates a new RevenueAggregator
func NewRevenueAggregator(ledger commission.InvoiceLedger, logger *zap.Logger, metrics *telemetry.RunMetrics) *RevenueAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevenueAggregator{ledger: ledger, logger: logger, metrics: metrics}
}

// Aggregate reads both sources for the period and merges them by salesperson.
// An invoice already counted as immediate is never counted again from the
// deferred source. Ledger errors abort the aggregation.
func (a *RevenueAggregator) Aggregate(ctx context.Context, period commission.Period, trace *commission.Trace) (commission.RevenueTotals, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "commission_revenue", "aggregate",
		telemetry.SpanAttrPeriodStart, period.Start.Format("2006-01-02"),
		telemetry.SpanAttrPeriodEnd, period.End.Format("2006-01-02"),
	)
	defer span.End()

	if trace == nil {
		trace = commission.NewTrace()
	}
	totals := commission.RevenueTotals{}
	seen := make(map[string]struct{})

	trace.Append(commission.EventStep, "STEP 1 immediate settlement START", nil)
	immediate, err := a.ledger.ImmediateAllocations(ctx, period)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to read immediate settlement invoices: %w", err)
	}
	a.record(ctx, trace, "STEP 1", commission.SourceImmediate, immediate)
	for _, row := range immediate {
		seen[row.Invoice] = struct{}{}
	}
	totals.AddAllocations(immediate)
	trace.Append(commission.EventStep, "STEP 1 totals", totalsFields(totals))

	trace.Append(commission.EventStep, "STEP 2 deferred settlement START", nil)
	deferred, err := a.ledger.DeferredAllocations(ctx, period)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to read deferred settlement invoices: %w", err)
	}
	kept := make([]commission.Allocation, 0, len(deferred))
	for _, row := range deferred {
		if _, dup := seen[row.Invoice]; dup {
			a.logger.Warn("Invoice returned by both settlement sources, counting once",
				zap.String("invoice", row.Invoice),
				zap.String("sales_person", row.SalesPerson),
			)
			continue
		}
		kept = append(kept, row)
	}
	a.record(ctx, trace, "STEP 2", commission.SourceDeferred, kept)

	deferredTotals := commission.RevenueTotals{}
	deferredTotals.AddAllocations(kept)
	totals.Merge(deferredTotals)
	trace.Append(commission.EventStep, "STEP 2 totals", totalsFields(totals))

	telemetry.SetAttributes(span,
		telemetry.SpanAttrRows, len(immediate)+len(kept),
		"commission.sales_persons", totals.Len(),
	)
	a.logger.Info("Revenue aggregated",
		zap.String("period", period.String()),
		zap.Int("immediate_rows", len(immediate)),
		zap.Int("deferred_rows", len(kept)),
		zap.Int("sales_persons", totals.Len()),
	)
	return totals, nil
}

func (a *RevenueAggregator) record(ctx context.Context, trace *commission.Trace, step string, source commission.RevenueSource, rows []commission.Allocation) {
	a.metrics.RecordAllocations(ctx, string(source), len(rows))
	trace.Append(commission.EventStep, step+" rows", map[string]string{"count": strconv.Itoa(len(rows))})
	if len(rows) == 0 {
		return
	}
	n := len(rows)
	if n > traceSampleSize {
		n = traceSampleSize
	}
	samples := make([]string, 0, n)
	for _, r := range rows[:n] {
		samples = append(samples, fmt.Sprintf("%s/%s/%s", r.Invoice, r.SalesPerson, r.Amount().StringFixed(2)))
	}
	trace.Append(commission.EventStep, step+" sample", map[string]string{"rows": strings.Join(samples, ",")})
}

func totalsFields(totals commission.RevenueTotals) map[string]string {
	fields := make(map[string]string, totals.Len())
	for _, sp := range totals.SalesPersons() {
		fields[sp] = totals.Get(sp).StringFixed(2)
	}
	return fields
}
