// utils/daytime.go
package utils

import (
	"fmt"
	"time"

	_ "time/tzdata" // competition zone must resolve on minimal images
)

// DayLayout is the key format of every daily aggregate.
const DayLayout = "2006-01-02"

// DayKey returns the calendar day of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// DayBounds returns [start, end) of the given day in loc.
func DayBounds(day string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(DayLayout, day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse day %q: %w", day, err)
	}
	return start, start.AddDate(0, 0, 1), nil
}

// ShiftDay moves a day key by n calendar days. Invalid keys are returned unchanged.
func ShiftDay(day string, n int) string {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, n).Format(DayLayout)
}

// DaysBetween returns the number of calendar days from a to b (negative if b precedes a).
func DaysBetween(a, b string) int {
	ta, errA := time.Parse(DayLayout, a)
	tb, errB := time.Parse(DayLayout, b)
	if errA != nil || errB != nil {
		return 0
	}
	return int(tb.Sub(ta).Hours() / 24)
}

// DayRange lists n consecutive days ending at last, oldest first.
func DayRange(last string, n int) []string {
	if n <= 0 {
		return nil
	}
	days := make([]string, n)
	for i := 0; i < n; i++ {
		days[i] = ShiftDay(last, i-(n-1))
	}
	return days
}
