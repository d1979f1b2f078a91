package utils

import "time"

// Calendar arithmetic for recurrence and trend projection.
// All dates are naive calendar dates: callers normalize to UTC once at the
// edge and every helper ignores the time-of-day component unless stated.

// TruncateToDay drops the time-of-day component.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsSameCalendarDay compares by date component only.
func IsSameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfMonth returns the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns the last day of t's month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, -1)
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return EndOfMonth(t).Day()
}

// RemainingDaysInMonth counts days from t through month end, inclusive of t.
func RemainingDaysInMonth(t time.Time) int {
	return DaysInMonth(t) - t.Day() + 1
}

// AddMonths advances t by n calendar months, clamping the day to the target
// month's length (Jan 31 + 1 month = Feb 28/29, never Mar 2).
func AddMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, n, 0)
	day := t.Day()
	if max := DaysInMonth(first); day > max {
		day = max
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// MonthKey renders t's calendar month as "2006-01", the map key used by the
// trend projection.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// ParseMonthKey parses a "2006-01" key back into the first day of that month.
func ParseMonthKey(key string) (time.Time, error) {
	return time.Parse("2006-01", key)
}

// MonthsBetween counts whole calendar-month steps from a's month to b's month.
// Same month returns 0; b before a returns a negative count.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
