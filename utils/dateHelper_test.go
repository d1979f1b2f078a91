package utils_test

import (
	"testing"
	"time"

	"github.com/moneymap/fintrack_backend/utils"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonths_ClampsToShorterMonth(t *testing.T) {
	got := utils.AddMonths(date(2024, time.January, 31), 1)
	if !got.Equal(date(2024, time.February, 29)) {
		t.Fatalf("Jan 31 + 1 month = %s, want 2024-02-29", got.Format("2006-01-02"))
	}

	got = utils.AddMonths(date(2023, time.January, 31), 1)
	if !got.Equal(date(2023, time.February, 28)) {
		t.Fatalf("Jan 31 + 1 month (non-leap) = %s, want 2023-02-28", got.Format("2006-01-02"))
	}

	got = utils.AddMonths(date(2024, time.March, 31), 1)
	if !got.Equal(date(2024, time.April, 30)) {
		t.Fatalf("Mar 31 + 1 month = %s, want 2024-04-30", got.Format("2006-01-02"))
	}
}

func TestAddMonths_PlainAdvance(t *testing.T) {
	got := utils.AddMonths(date(2024, time.January, 15), 1)
	if !got.Equal(date(2024, time.February, 15)) {
		t.Fatalf("Jan 15 + 1 month = %s, want 2024-02-15", got.Format("2006-01-02"))
	}

	got = utils.AddMonths(date(2024, time.November, 10), 3)
	if !got.Equal(date(2025, time.February, 10)) {
		t.Fatalf("Nov 10 + 3 months = %s, want 2025-02-10", got.Format("2006-01-02"))
	}
}

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		in   time.Time
		want int
	}{
		{date(2024, time.January, 10), 31},
		{date(2024, time.February, 1), 29},
		{date(2023, time.February, 1), 28},
		{date(2024, time.April, 30), 30},
	}
	for _, c := range cases {
		if got := utils.DaysInMonth(c.in); got != c.want {
			t.Fatalf("DaysInMonth(%s) = %d, want %d", c.in.Format("2006-01"), got, c.want)
		}
	}
}

func TestRemainingDaysInMonth_Inclusive(t *testing.T) {
	// The 28th of a 31-day month has 4 remaining days: 28, 29, 30, 31.
	if got := utils.RemainingDaysInMonth(date(2024, time.January, 28)); got != 4 {
		t.Fatalf("RemainingDaysInMonth(Jan 28) = %d, want 4", got)
	}
	if got := utils.RemainingDaysInMonth(date(2024, time.January, 31)); got != 1 {
		t.Fatalf("RemainingDaysInMonth(Jan 31) = %d, want 1", got)
	}
	if got := utils.RemainingDaysInMonth(date(2024, time.February, 1)); got != 29 {
		t.Fatalf("RemainingDaysInMonth(Feb 1, leap) = %d, want 29", got)
	}
}

func TestMonthKey_RoundTrip(t *testing.T) {
	key := utils.MonthKey(date(2024, time.March, 17))
	if key != "2024-03" {
		t.Fatalf("MonthKey = %q, want 2024-03", key)
	}
	parsed, err := utils.ParseMonthKey(key)
	if err != nil {
		t.Fatalf("ParseMonthKey: %v", err)
	}
	if parsed.Year() != 2024 || parsed.Month() != time.March {
		t.Fatalf("ParseMonthKey = %s, want 2024-03", parsed.Format("2006-01"))
	}
}

func TestMonthsBetween(t *testing.T) {
	if got := utils.MonthsBetween(date(2024, time.January, 31), date(2024, time.March, 1)); got != 2 {
		t.Fatalf("MonthsBetween Jan..Mar = %d, want 2", got)
	}
	if got := utils.MonthsBetween(date(2024, time.May, 1), date(2024, time.May, 31)); got != 0 {
		t.Fatalf("MonthsBetween same month = %d, want 0", got)
	}
	if got := utils.MonthsBetween(date(2024, time.May, 1), date(2024, time.March, 1)); got != -2 {
		t.Fatalf("MonthsBetween backwards = %d, want -2", got)
	}
}

func TestTruncateToDay_DropsClock(t *testing.T) {
	in := time.Date(2024, time.June, 5, 23, 59, 58, 123, time.UTC)
	got := utils.TruncateToDay(in)
	if !got.Equal(date(2024, time.June, 5)) {
		t.Fatalf("TruncateToDay = %s, want midnight 2024-06-05", got)
	}
}
