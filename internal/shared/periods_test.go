package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthStart(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2025, 7, 19, 23, 45, 0, 0, loc)

	got := MonthStart(in)

	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestPrevMonthCrossesYear(t *testing.T) {
	got := PrevMonth(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestMonthRange(t *testing.T) {
	start, end := MonthRange(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestParseMonth(t *testing.T) {
	got, err := ParseMonth("2025-07")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), got)

	for _, bad := range []string{"", "2025", "2025-13", "07-2025", "2025-07-01"} {
		_, err := ParseMonth(bad)
		assert.ErrorIs(t, err, ErrBadRequest, "period %q", bad)
	}
}

func TestFormatMonthRoundTrips(t *testing.T) {
	period := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	parsed, err := ParseMonth(FormatMonth(period))
	require.NoError(t, err)
	assert.Equal(t, period, parsed)
}

func TestValidateTargetMonth(t *testing.T) {
	now := time.Date(2025, 8, 15, 9, 0, 0, 0, time.UTC)
	created := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		target  time.Time
		wantErr bool
	}{
		{"prior month", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), false},
		{"creation month", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"mid-month timestamp", time.Date(2025, 6, 20, 13, 0, 0, 0, time.UTC), false},
		{"zero", time.Time{}, true},
		{"current month", time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), true},
		{"future month", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), true},
		{"before creation", time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTargetMonth(tc.target, created, now)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrBadRequest)
				return
			}
			assert.NoError(t, err)
		})
	}
}
