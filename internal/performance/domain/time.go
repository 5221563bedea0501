package performance

import (
	"fmt"
	"strconv"
	"time"
)

// CombineDateTime joins a calendar day and an "HHMM" clock value.
// The result keeps date's location; no timezone conversion is applied.
func CombineDateTime(date time.Time, clock string) (time.Time, error) {
	if len(clock) != 4 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}
	for _, r := range clock {
		if r < '0' || r > '9' {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
		}
	}
	hour, err := strconv.Atoi(clock[:2])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}
	minute, err := strconv.Atoi(clock[2:])
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location()), nil
}

// DayStart truncates t to midnight in its own location.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
