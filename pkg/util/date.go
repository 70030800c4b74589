package util

import (
    "strings"
    "time"

    "cloud.google.com/go/civil"
)

var dateLayouts = []string{"2006-01-02", "20060102", "01/02/2006", time.RFC3339}

// ParseDate accepts ISO dates, compact dates, US dates and RFC3339 timestamps.
// Returns (d, true) if any layout matched.
func ParseDate(s string) (civil.Date, bool) {
    s = strings.TrimSpace(s)
    if s == "" {
        return civil.Date{}, false
    }
    for _, layout := range dateLayouts {
        if t, err := time.Parse(layout, s); err == nil {
            return civil.DateOf(t), true
        }
    }
    return civil.Date{}, false
}

// ParseDateDefault parses a date or returns def if empty/invalid.
func ParseDateDefault(s string, def civil.Date) civil.Date {
    if d, ok := ParseDate(s); ok {
        return d
    }
    return def
}

// ParseOptionalDate returns nil for an empty string.
func ParseOptionalDate(s string) (*civil.Date, bool) {
    if strings.TrimSpace(s) == "" {
        return nil, true
    }
    d, ok := ParseDate(s)
    if !ok {
        return nil, false
    }
    return &d, true
}

// Today is the current UTC calendar date.
func Today() civil.Date {
    return civil.DateOf(time.Now().UTC())
}

// DaysInclusive counts calendar days in [from, to]; zero when from > to.
func DaysInclusive(from, to civil.Date) int {
    if to.Before(from) {
        return 0
    }
    return to.DaysSince(from) + 1
}

// DateToTime maps a calendar date to midnight UTC.
func DateToTime(d civil.Date) time.Time {
    return d.In(time.UTC)
}
