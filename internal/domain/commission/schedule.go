package commission

import (
	"sort"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	// infiniteLimit marks a configured limit large enough to act as the open-ended tier
	infiniteLimit = decimal.New(1, 15)
)

// Tier is one bracket of a commission schedule. A tier applies to totals
// strictly below Bound; the terminal tier has Open set and no bound.
type Tier struct {
	Bound decimal.Decimal `json:"bound"`
	Rate  decimal.Decimal `json:"rate"`
	Open  bool            `json:"open"`
}

// Schedule is an ascending sequence of tiers ending in an open tier
type Schedule struct {
	tiers []Tier
}

// DefaultSchedule is used when no valid slab rows are configured:
// 0% under 70,000; 1% under 100,000; 1.5% under 150,000; 2% above.
func DefaultSchedule() Schedule {
	return Schedule{tiers: []Tier{
		{Bound: decimal.NewFromInt(70000), Rate: decimal.Zero},
		{Bound: decimal.NewFromInt(100000), Rate: decimal.RequireFromString("0.01")},
		{Bound: decimal.NewFromInt(150000), Rate: decimal.RequireFromString("0.015")},
		{Rate: decimal.RequireFromString("0.02"), Open: true},
	}}
}

// NormalizeRate applies the percent-or-fraction rule: values of 1 or more
// are percentages, values below 1 are already fractions.
func NormalizeRate(r decimal.Decimal) decimal.Decimal {
	if r.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return r.Div(hundred)
	}
	return r
}

// NewSchedule builds a schedule from configured slab rows. Rows with a
// non-positive limit or negative rate are ignored, duplicates on limit keep
// the first row. When no row survives the default schedule is returned.
// If the last row is not effectively unbounded, an open tier carrying the
// last rate is appended.
func NewSchedule(rows []SlabRow) Schedule {
	valid := make([]SlabRow, 0, len(rows))
	for _, r := range rows {
		if !r.LimitAmount.IsPositive() || r.Rate.IsNegative() {
			continue
		}
		valid = append(valid, r)
	}
	if len(valid) == 0 {
		return DefaultSchedule()
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].LimitAmount.LessThan(valid[j].LimitAmount)
	})

	tiers := make([]Tier, 0, len(valid)+1)
	for _, r := range valid {
		if n := len(tiers); n > 0 && tiers[n-1].Bound.Equal(r.LimitAmount) {
			continue
		}
		rate := NormalizeRate(r.Rate)
		if r.LimitAmount.GreaterThanOrEqual(infiniteLimit) {
			tiers = append(tiers, Tier{Rate: rate, Open: true})
			return Schedule{tiers: tiers}
		}
		tiers = append(tiers, Tier{Bound: r.LimitAmount, Rate: rate})
	}
	last := tiers[len(tiers)-1]
	tiers = append(tiers, Tier{Rate: last.Rate, Open: true})
	return Schedule{tiers: tiers}
}

// Tiers returns a copy of the tiers in ascending order
func (s Schedule) Tiers() []Tier {
	out := make([]Tier, len(s.tiers))
	copy(out, s.tiers)
	return out
}

// Rate returns the rate of the first tier whose bound exceeds total, the
// open tier's rate when total is at or above every bound, or zero for an
// empty schedule.
func (s Schedule) Rate(total decimal.Decimal) decimal.Decimal {
	for _, t := range s.tiers {
		if t.Open || total.LessThan(t.Bound) {
			return t.Rate
		}
	}
	if n := len(s.tiers); n > 0 {
		return s.tiers[n-1].Rate
	}
	return decimal.Zero
}

// Commission returns total × Rate(total) rounded half away from zero to 2 places
func (s Schedule) Commission(total decimal.Decimal) decimal.Decimal {
	return total.Mul(s.Rate(total)).Round(2)
}
