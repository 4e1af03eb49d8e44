package model

import "time"

// Day truncates t to midnight UTC. All calendar-day comparisons (streaks,
// deadlines, due dates, overdue checks) go through it.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b (negative if b is before a).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// ParseDay parses a YYYY-MM-DD calendar date as midnight UTC.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}
