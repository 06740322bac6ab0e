package commission

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RevenueSource tells which settlement population an allocation came from
type RevenueSource string

const (
	// SourceImmediate covers invoices settled at the point of sale
	SourceImmediate RevenueSource = "IMMEDIATE"
	// SourceDeferred covers invoices settled later through payment entries
	SourceDeferred RevenueSource = "DEFERRED"
)

// Allocation is one sales-team row of a fully settled invoice
type Allocation struct {
	Invoice          string
	SalesPerson      string
	NetTotal         decimal.Decimal
	AllocatedPercent *decimal.Decimal
	Source           RevenueSource
}

// Percent returns the allocation percentage, defaulting to 100 when unset
func (a Allocation) Percent() decimal.Decimal {
	if a.AllocatedPercent == nil {
		return hundred
	}
	return *a.AllocatedPercent
}

// Amount is the share of the invoice net total attributed to the salesperson
func (a Allocation) Amount() decimal.Decimal {
	return a.NetTotal.Mul(a.Percent()).Div(hundred)
}

// RevenueTotals accumulates attributed revenue per salesperson. A missing
// key means zero revenue.
type RevenueTotals map[string]decimal.Decimal

// Add accrues amount to salesPerson. Empty salesperson names are ignored.
func (t RevenueTotals) Add(salesPerson string, amount decimal.Decimal) {
	if salesPerson == "" {
		return
	}
	t[salesPerson] = t[salesPerson].Add(amount)
}

// AddAllocations accrues every allocation's amount
func (t RevenueTotals) AddAllocations(rows []Allocation) {
	for _, r := range rows {
		t.Add(r.SalesPerson, r.Amount())
	}
}

// Merge adds every entry of other into t
func (t RevenueTotals) Merge(other RevenueTotals) {
	for sp, amount := range other {
		t.Add(sp, amount)
	}
}

// Get returns the total for salesPerson, zero when absent
func (t RevenueTotals) Get(salesPerson string) decimal.Decimal {
	return t[salesPerson]
}

// SalesPersons returns the keys in sorted order
func (t RevenueTotals) SalesPersons() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sum returns the total across all salespeople
func (t RevenueTotals) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range t {
		sum = sum.Add(v)
	}
	return sum
}

// Len returns the number of salespeople with revenue
func (t RevenueTotals) Len() int {
	return len(t)
}
