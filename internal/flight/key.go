package flight

import (
	"strings"
	"time"
)

const isoLayout = "2006-01-02"

var dateLayouts = []string{
	isoLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"Mon, Jan 2, 2006",
	"Monday, January 2, 2006",
	"Mon Jan 2 2006",
	"2 Jan 2006",
	"01/02/2006",
	"1/2/2006",
}

// NormalizeKey maps a flight date written as an ISO date, timestamp or display label
// onto a single comparable key. Unparseable input is lower-cased with collapsed spaces.
func NormalizeKey(s string) string {
	trimmed := strings.Join(strings.Fields(s), " ")
	if trimmed == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			if layout == time.RFC3339 || layout == time.RFC3339Nano {
				t = t.UTC()
			}
			return t.Format(isoLayout)
		}
	}
	return strings.ToLower(trimmed)
}

// KeyFromTime returns the key for a timestamp, using its UTC calendar date.
func KeyFromTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(isoLayout)
}

// KeyFromAny accepts the shapes a receiver flight date arrives in from collaborators.
func KeyFromAny(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return NormalizeKey(val)
	case *string:
		if val == nil {
			return ""
		}
		return NormalizeKey(*val)
	case time.Time:
		return KeyFromTime(val)
	case *time.Time:
		if val == nil {
			return ""
		}
		return KeyFromTime(*val)
	default:
		return ""
	}
}
