package ledger

import "time"

// Day truncates t to midnight in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayFromDate rebuilds a local midnight from the calendar fields of a
// date-only value, as scanned from a DATE column.
func DayFromDate(d time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// DaysBetween counts calendar days from a to b in loc. DST shifts do
// not affect the result.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	da, db := Day(a, loc), Day(b, loc)
	ua := time.Date(da.Year(), da.Month(), da.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(db.Year(), db.Month(), db.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// WeekStart is the most recent Sunday midnight at or before t.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	d := Day(t, loc)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// DaysAgo is local midnight n days before t.
func DaysAgo(t time.Time, n int, loc *time.Location) time.Time {
	return Day(t, loc).AddDate(0, 0, -n)
}
