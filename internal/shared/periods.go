package shared

import (
	"fmt"
	"time"
)

// PeriodTypeMonthly is the only metric granularity the engine persists.
const PeriodTypeMonthly = "monthly"

// MonthStart normalizes t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PrevMonth returns the first day of the month before t's month.
func PrevMonth(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, -1, 0)
}

// MonthRange returns the inclusive start and exclusive end of t's month.
func MonthRange(t time.Time) (time.Time, time.Time) {
	start := MonthStart(t)
	return start, start.AddDate(0, 1, 0)
}

// ParseMonth parses a YYYY-MM period token into a first-of-month UTC date.
func ParseMonth(period string) (time.Time, error) {
	t, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: period %q must be YYYY-MM", ErrBadRequest, period)
	}
	return MonthStart(t), nil
}

// FormatMonth renders the YYYY-MM token for a period date.
func FormatMonth(t time.Time) string {
	return t.Format("2006-01")
}

// ValidateTargetMonth enforces the sync preconditions: the target must be a
// real month, must not be the current calendar month, and must not precede
// the month the business was created.
func ValidateTargetMonth(target, businessCreatedAt, now time.Time) error {
	if target.IsZero() {
		return fmt.Errorf("%w: target month required", ErrBadRequest)
	}
	month := MonthStart(target)
	if month.Equal(MonthStart(now)) {
		return fmt.Errorf("%w: cannot sync the current month", ErrBadRequest)
	}
	if month.After(MonthStart(now)) {
		return fmt.Errorf("%w: target month is in the future", ErrBadRequest)
	}
	if month.Before(MonthStart(businessCreatedAt)) {
		return fmt.Errorf("%w: target month precedes business creation", ErrBadRequest)
	}
	return nil
}
