package store

import "time"

// AddHalfYear returns t moved six calendar months forward. Months past
// December roll into the next year, and the day is clamped to the last day
// of the target month (Aug 31 becomes Feb 28 or 29).
func AddHalfYear(t time.Time) time.Time {
	year, month, day := t.Date()
	month += 6
	if month > 12 {
		month -= 12
		year++
	}
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
