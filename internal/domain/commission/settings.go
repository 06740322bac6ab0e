package commission

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PeriodSelector chooses which calendar month a run evaluates
type PeriodSelector string

const (
	PeriodCurrentMonth PeriodSelector = "Current Month"
	PeriodLastMonth    PeriodSelector = "Last Month"
)

// DefaultComponent is the salary component commissions are booked against
const DefaultComponent = "Commission"

// DefaultRunKeySuffix is appended to the run key when none is configured
const DefaultRunKeySuffix = "MONTHLY"

var periodSpellings = map[string]PeriodSelector{
	"current month": PeriodCurrentMonth,
	"current_month": PeriodCurrentMonth,
	"current":       PeriodCurrentMonth,
	"last month":    PeriodLastMonth,
	"last_month":    PeriodLastMonth,
	"last":          PeriodLastMonth,
}

// ParsePeriodSelector maps free text to a selector. Anything unrecognised
// resolves to PeriodLastMonth.
func ParsePeriodSelector(s string) PeriodSelector {
	if p, ok := periodSpellings[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p
	}
	return PeriodLastMonth
}

// IsPeriodSelector reports whether s names a selector, either by its label
// ("Last Month") or its snake-case key ("last_month")
func IsPeriodSelector(s string) bool {
	_, ok := periodSpellings[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// String returns the selector label
func (p PeriodSelector) String() string {
	return string(p)
}

// SlabRow is one user-configured commission bracket
type SlabRow struct {
	LimitAmount decimal.Decimal `json:"limit_amount"`
	Rate        decimal.Decimal `json:"rate"`
}

// Settings is the commission configuration record resolved once per run
type Settings struct {
	Enabled      bool
	ForceRun     bool
	Component    string
	RunKeySuffix string
	Period       PeriodSelector
	SlabRows     []SlabRow
}

// Normalize fills empty fields with defaults and returns the result
func (s Settings) Normalize() Settings {
	if strings.TrimSpace(s.Component) == "" {
		s.Component = DefaultComponent
	}
	if strings.TrimSpace(s.RunKeySuffix) == "" {
		s.RunKeySuffix = DefaultRunKeySuffix
	}
	if s.Period != PeriodCurrentMonth {
		s.Period = PeriodLastMonth
	}
	return s
}

// Schedule builds the tier schedule for these settings
func (s Settings) Schedule() Schedule {
	return NewSchedule(s.SlabRows)
}
