package persistence

import (
	"context"

	"github.com/erp/commission/internal/domain/commission"
	"github.com/erp/commission/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	docStatusSubmitted     = 1
	salesInvoiceDoctype    = "Sales Invoice"
	immediateAllocationSQL = `
SELECT si.name AS invoice,
       st.sales_person AS sales_person,
       si.net_total AS net_total,
       st.allocated_percentage AS allocated_percentage
FROM sales_invoices si
JOIN sales_team st ON st.parent = si.name
WHERE si.docstatus = ?
  AND si.is_return = ?
  AND COALESCE(si.outstanding_amount, 0) <= 0
  AND si.posting_date >= ? AND si.posting_date < ?
  AND (
        si.is_pos = ?
        OR EXISTS (SELECT 1 FROM sales_invoice_payments sip WHERE sip.parent = si.name)
  )
ORDER BY si.posting_date, si.name, st.idx`

	deferredAllocationSQL = `
SELECT si.name AS invoice,
       st.sales_person AS sales_person,
       si.net_total AS net_total,
       st.allocated_percentage AS allocated_percentage
FROM sales_invoices si
JOIN (
    SELECT per.reference_name AS invoice,
           MAX(pe.posting_date) AS last_payment_date
    FROM payment_entry_references per
    JOIN payment_entries pe ON pe.name = per.parent
    WHERE pe.docstatus = ?
      AND per.reference_doctype = ?
    GROUP BY per.reference_name
) p ON p.invoice = si.name
JOIN sales_team st ON st.parent = si.name
WHERE si.docstatus = ?
  AND si.is_return = ?
  AND COALESCE(si.outstanding_amount, 0) <= 0
  AND p.last_payment_date >= ? AND p.last_payment_date < ?
  AND si.is_pos = ?
  AND NOT EXISTS (SELECT 1 FROM sales_invoice_payments sip WHERE sip.parent = si.name)
ORDER BY si.name, st.idx`
)

// allocationRow is the scan target of both ledger queries
type allocationRow struct {
	Invoice             string
	SalesPerson         string
	NetTotal            decimal.Decimal
	AllocatedPercentage decimal.NullDecimal
}

// GormInvoiceLedger implements commission.InvoiceLedger over the host ledger tables
type GormInvoiceLedger struct {
	db *gorm.DB
}

// NewGormInvoiceLedger creates a new GormInvoiceLedger
func NewGormInvoiceLedger(db *gorm.DB) *GormInvoiceLedger {
	return &GormInvoiceLedger{db: db}
}

// ImmediateAllocations returns sales-team rows of submitted, fully paid,
// non-return invoices posted in the period and settled at the point of sale.
func (l *GormInvoiceLedger) ImmediateAllocations(ctx context.Context, period commission.Period) ([]commission.Allocation, error) {
	var rows []allocationRow
	err := l.db.WithContext(ctx).
		Raw(immediateAllocationSQL,
			docStatusSubmitted, false,
			models.CalendarDate(period.Start), models.CalendarDate(period.Until()),
			true,
		).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toAllocations(rows, commission.SourceImmediate), nil
}

// DeferredAllocations returns sales-team rows of submitted, fully paid,
// non-return invoices that are neither POS-flagged nor carry a point-of-sale
// payment, and whose latest submitted payment entry falls in the period.
// It is the exact complement of the immediate discriminator, so an invoice
// is never counted by both sources in any pair of months.
func (l *GormInvoiceLedger) DeferredAllocations(ctx context.Context, period commission.Period) ([]commission.Allocation, error) {
	var rows []allocationRow
	err := l.db.WithContext(ctx).
		Raw(deferredAllocationSQL,
			docStatusSubmitted, salesInvoiceDoctype,
			docStatusSubmitted, false,
			models.CalendarDate(period.Start), models.CalendarDate(period.Until()),
			false,
		).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toAllocations(rows, commission.SourceDeferred), nil
}

func toAllocations(rows []allocationRow, source commission.RevenueSource) []commission.Allocation {
	out := make([]commission.Allocation, 0, len(rows))
	for _, r := range rows {
		a := commission.Allocation{
			Invoice:     r.Invoice,
			SalesPerson: r.SalesPerson,
			NetTotal:    r.NetTotal,
			Source:      source,
		}
		if r.AllocatedPercentage.Valid {
			pct := r.AllocatedPercentage.Decimal
			a.AllocatedPercent = &pct
		}
		out = append(out, a)
	}
	return out
}
