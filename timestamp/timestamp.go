// Package timestamp normalizes date/time input into canonical UTC instants
// and renders them in the fixed STIX textual form.
//
// All STIX timestamps are UTC. Input may arrive as a time.Time, a date-only
// string, or a date/time string in a handful of recognizable layouts; Parse
// collapses all of them onto a single UTC representation so that records
// serialize deterministically regardless of where the value came from.
package timestamp

import (
	"fmt"
	"strings"
	"time"
)

// Clock supplies the current instant. Construction paths accept a Clock so
// tests can substitute a fixed instant instead of patching the wall clock.
type Clock interface {
	Now() time.Time
}

// systemClock reads the wall clock.
type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// System returns a Clock backed by the wall clock, in UTC.
func System() Clock {
	return systemClock{}
}

// fixedClock always reports the same instant.
type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time {
	return c.t
}

// Fixed returns a Clock frozen at t (normalized to UTC). Intended for tests.
func Fixed(t time.Time) Clock {
	return fixedClock{t: t.UTC()}
}

// Now returns the current instant in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// FormatError reports date/time input that could not be normalized: an
// unparseable string or an unsupported input type.
type FormatError struct {
	// Value is the offending input.
	Value any

	// Message describes why normalization failed.
	Message string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid timestamp %v: %s", e.Value, e.Message)
}

// parseLayouts are tried in order against string input. Layouts without a
// zone designator are interpreted as UTC.
var parseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse normalizes v into a UTC instant.
//
// Accepted inputs:
//   - time.Time: converted to UTC as-is.
//   - string: a date-only value (promoted to midnight UTC) or a date/time
//     value in a recognizable layout; strings without zone information are
//     assumed UTC.
//
// Any other type, or a string matching no layout, yields a *FormatError.
func Parse(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), nil
	case string:
		return parseString(val)
	default:
		return time.Time{}, &FormatError{
			Value:   v,
			Message: "must be a time.Time or a timestamp string in a recognizable format",
		}
	}
}

func parseString(s string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		t, err := time.ParseInLocation(layout, trimmed, time.UTC)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &FormatError{
		Value:   s,
		Message: "not a timestamp string in a recognizable format",
	}
}

// Format renders t as YYYY-MM-DDTHH:MM:SS[.ffffff]Z.
//
// The fractional-second group appears only when the sub-second value is
// non-zero, and trailing zero digits of the fraction are stripped: 500000
// microseconds renders as ".5", not ".500000". The instant is converted to
// UTC before rendering.
func Format(t time.Time) string {
	utc := t.UTC()
	out := utc.Format("2006-01-02T15:04:05")
	if micros := utc.Nanosecond() / 1000; micros > 0 {
		frac := strings.TrimRight(fmt.Sprintf("%06d", micros), "0")
		out += "." + frac
	}
	return out + "Z"
}
