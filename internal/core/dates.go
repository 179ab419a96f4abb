package core

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// strictLayouts are the ISO-8601 shapes the API is documented to send.
var strictLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseFlexibleDate parses a transaction date in the local location.
func ParseFlexibleDate(text string) (time.Time, bool) {
	return ParseFlexibleDateIn(text, time.Local)
}

// ParseFlexibleDateIn tries the strict ISO layouts first and falls back to
// permissive parsing. Zone-less values are interpreted in loc. The second
// return is false when neither attempt yields a date.
func ParseFlexibleDateIn(text string, loc *time.Location) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range strictLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, true
		}
	}
	t, err := dateparse.ParseIn(text, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
