package csvrepair

import (
	"strings"
	"time"

	"github.com/apex-analytics/apexfeed/internal/types"
)

// lenientLayouts are tried in order by ParseDateLenient. Month-before-day
// formats only: day-first parsing stays disabled to match the canonical
// YYYY-MM-DD pipeline.
var lenientLayouts = []string{
	types.DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"2006.01.02",
	"20060102",
}

// ParseDateStrict parses only the canonical YYYY-MM-DD form.
func ParseDateStrict(s string) (time.Time, bool) {
	t, err := time.Parse(types.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

// ParseDateLenient parses a date-like token in any of the supported general
// formats. Empty strings never parse.
func ParseDateLenient(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range lenientLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
