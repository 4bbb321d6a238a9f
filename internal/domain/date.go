package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the canonical wire format for dates.
	DateLayout = "2006-01-02"
	// DisplayLayout is the dd/mm/yyyy format used by the quote sources.
	DisplayLayout = "02/01/2006"
)

// DateOf truncates t to its calendar date, expressed as midnight UTC.
// The calendar date is taken in t's own location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date in loc.
func Today(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(time.Now().In(loc))
}

// ParseDate accepts YYYY-MM-DD or dd/mm/yyyy.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, DisplayLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD or dd/mm/yyyy", s)
}

// FormatDisplay renders a date as dd/mm/yyyy.
func FormatDisplay(t time.Time) string {
	return t.Format(DisplayLayout)
}
