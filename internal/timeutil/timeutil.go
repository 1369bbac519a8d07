package timeutil

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format accepted by range queries
const DateLayout = "2006-01-02"

// Location is the canonical zone (UTC+8) all duration math is anchored to.
// It is a fixed offset so results never depend on the host zone or tzdata.
var Location = time.FixedZone("CST", 8*60*60)

// ErrInvalidDate is returned for malformed or impossible calendar dates
var ErrInvalidDate = errors.New("invalid date")

// In converts t to the canonical zone
func In(t time.Time) time.Time {
	return t.In(Location)
}

// FromUnix returns the instant for a Unix timestamp in the canonical zone
func FromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).In(Location)
}

// ParseDate parses a strict YYYY-MM-DD date and returns 00:00:00 of that day
// in the canonical zone. Dates such as 2024-02-30 are rejected, not normalized.
func ParseDate(s string) (time.Time, error) {
	if len(s) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("%w: %q, expected YYYY-MM-DD", ErrInvalidDate, s)
	}
	t, err := time.ParseInLocation(DateLayout, s, Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// StartOfDay returns 00:00:00 of t's calendar day in the canonical zone
func StartOfDay(t time.Time) time.Time {
	t = t.In(Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
}

// StartOfDayString is StartOfDay for a YYYY-MM-DD string
func StartOfDayString(s string) (time.Time, error) {
	return ParseDate(s)
}

// EndOfDay returns 23:59:59.999 of t's calendar day in the canonical zone
func EndOfDay(t time.Time) time.Time {
	t = t.In(Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), Location)
}

// EndOfDayString is EndOfDay for a YYYY-MM-DD string
func EndOfDayString(s string) (time.Time, error) {
	t, err := ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return EndOfDay(t), nil
}

// DateString formats t as YYYY-MM-DD in the canonical zone
func DateString(t time.Time) string {
	return t.In(Location).Format(DateLayout)
}

// DefaultRange is the last 7 days through the end of today
func DefaultRange(now time.Time) (time.Time, time.Time) {
	return StartOfDay(now.AddDate(0, 0, -7)), EndOfDay(now)
}

// Yesterday returns the start of the canonical day before now
func Yesterday(now time.Time) time.Time {
	return StartOfDay(StartOfDay(now).Add(-time.Hour))
}

// NextDay returns the start of the canonical day after day
func NextDay(day time.Time) time.Time {
	return StartOfDay(day).AddDate(0, 0, 1)
}
