package utils

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date form events are stored with.
const DateLayout = "2006-01-02"

// clockLayouts are the accepted local start time spellings, 24-hour first.
var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"03:04 PM",
}

// ParseClock parses a wall-clock string into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	if trimmed == "" {
		return 0, fmt.Errorf("empty clock value")
	}
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, trimmed)
		if err != nil {
			continue
		}
		return time.Duration(t.Hour())*time.Hour +
			time.Duration(t.Minute())*time.Minute +
			time.Duration(t.Second())*time.Second, nil
	}
	return 0, fmt.Errorf("unparsable clock value %q", s)
}

// ParseDate parses a calendar date in the given location.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparsable date %q: %w", s, err)
	}
	return t, nil
}

// EventStart resolves an event's date and optional clock string into a start
// instant. hasClock is false when the clock string is missing or unparsable;
// the start then falls on midnight. An unparsable date is an error.
func EventStart(date, clock string, loc *time.Location) (start time.Time, hasClock bool, err error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	offset, cerr := ParseClock(clock)
	if cerr != nil {
		return day, false, nil
	}
	return day.Add(offset), true, nil
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).
		Add(24*time.Hour - time.Nanosecond)
}

// LocalDate formats t as a calendar date.
func LocalDate(t time.Time) string {
	return t.Format(DateLayout)
}

// LocalClock formats t as a 24-hour wall-clock string.
func LocalClock(t time.Time) string {
	return t.Format("15:04:05")
}

// FormatDuration renders a non-negative duration as HH:MM:SS when it spans
// at least an hour, MM:SS otherwise.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return ""
	}
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
