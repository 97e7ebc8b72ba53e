// Package payload holds parsing helpers shared by the ingestion handlers.
package payload

import (
	"fmt"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// DateTime combines a date and an optional wall-clock time into a local
// instant. A missing clock resolves to the end of the day so day-scale
// offsets stay meaningful. An unparseable value is the caller's cue to
// reject the message.
func DateTime(date, clock string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, date, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}

	if clock == "" {
		return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 0, 0, d.Location()), nil
	}

	c, err := time.ParseInLocation(clockLayout, clock, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", clock, err)
	}

	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, d.Location()), nil
}

// Instant parses an RFC3339 timestamp.
func Instant(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}
