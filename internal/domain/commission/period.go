package commission

import (
	"fmt"
	"strings"
	"time"
)

// runKeyPrefix marks drafts written by the fully-paid commission run
const runKeyPrefix = "AUTO_COMM_FULLPAID_"

// Period is the evaluation window of one run. Start and End are calendar
// days (midnight in the period's location); End is inclusive.
type Period struct {
	Start       time.Time
	End         time.Time
	PayrollDate time.Time
}

// ResolvePeriod returns the first and last day of the month chosen by selector,
// relative to now in loc. The payroll date equals the period end.
func ResolvePeriod(now time.Time, selector PeriodSelector, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	if selector != PeriodCurrentMonth {
		first = first.AddDate(0, -1, 0)
	}
	last := first.AddDate(0, 1, -1)
	return Period{Start: first, End: last, PayrollDate: last}
}

// PeriodFromRange builds a period from an explicit date pair. Times are
// truncated to the calendar day in loc.
func PeriodFromRange(from, to time.Time, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	start := day(from, loc)
	end := day(to, loc)
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end, PayrollDate: end}, nil
}

// Until returns the exclusive upper bound of the window (the day after End)
func (p Period) Until() time.Time {
	return p.End.AddDate(0, 0, 1)
}

// Contains reports whether t falls on a day inside the period
func (p Period) Contains(t time.Time) bool {
	t = t.In(p.Start.Location())
	return !t.Before(p.Start) && t.Before(p.Until())
}

// Month returns the year-month label of the period start
func (p Period) Month() string {
	return p.Start.Format("2006-01")
}

// String implements fmt.Stringer
func (p Period) String() string {
	return fmt.Sprintf("%s..%s", p.Start.Format(time.DateOnly), p.End.Format(time.DateOnly))
}

// RunKey identifies the run for a period. It is stable across repeated runs
// of the same month so re-runs land on the same drafts.
func RunKey(p Period, suffix string) string {
	if suffix == "" {
		suffix = DefaultRunKeySuffix
	}
	return runKeyPrefix + p.Month() + "_" + suffix
}

// IsRunKey reports whether s has the shape RunKey produces
func IsRunKey(s string) bool {
	rest, ok := strings.CutPrefix(s, runKeyPrefix)
	if !ok {
		return false
	}
	month, suffix, ok := strings.Cut(rest, "_")
	if !ok || suffix == "" {
		return false
	}
	_, err := time.Parse("2006-01", month)
	return err == nil
}

func day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
