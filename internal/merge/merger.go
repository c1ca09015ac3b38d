// Package merge implements the idempotent incremental update of canonical
// historical files: planning the fetch window, appending genuinely new
// dates, and running the per-ticker batch cycle.
package merge

import (
	"time"

	"github.com/apex-analytics/apexfeed/internal/types"
)

// Result describes the outcome of one merge.
type Result struct {
	Series types.Series
	// Added is the number of dates present in the fetched series but not in
	// the existing one.
	Added int
}

// Merge combines an existing canonical series with freshly fetched bars.
// Dates already present keep their existing values even when the fetch
// disagrees; only genuinely new dates are appended. The output is
// deduplicated and sorted ascending.
//
// With no existing series the fetched series becomes the result in its
// entirety. With nothing new the existing series is returned unchanged
// (callers rewrite it anyway to normalize formatting).
func Merge(existing, fetched types.Series) Result {
	if len(existing) == 0 {
		deduped := fetched.SortDedupe()

		return Result{Series: deduped, Added: len(deduped)}
	}

	known := existing.DateSet()

	var fresh types.Series

	for _, b := range fetched {
		if _, ok := known[b.Date]; !ok {
			fresh = append(fresh, b)
		}
	}

	if len(fresh) == 0 {
		return Result{Series: existing.SortDedupe(), Added: 0}
	}

	combined := make(types.Series, 0, len(existing)+len(fresh))
	combined = append(combined, existing...)
	combined = append(combined, fresh...)

	deduped := combined.SortDedupe()

	return Result{Series: deduped, Added: len(deduped) - len(existing.SortDedupe())}
}

// FetchPlan is a half-open [Start, End) fetch window. Skip means the window
// is empty and no network call should happen.
type FetchPlan struct {
	Start time.Time
	End   time.Time
	Skip  bool
}

// PlanFetch computes the fetch window for a ticker. Start is the day after
// the last known date, or defaultStart when the series is absent or carries
// no parseable date. End is exclusive: now's date plus one day, so today's
// bar is included. When start reaches end there is nothing to fetch.
func PlanFetch(existing types.Series, defaultStart, now time.Time) FetchPlan {
	start := defaultStart

	if last, ok := existing.LastDate(); ok {
		start = last.AddDate(0, 0, 1)
	}

	// Dates are compared as UTC midnights throughout the pipeline.
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := today.AddDate(0, 0, 1)

	return FetchPlan{
		Start: start,
		End:   end,
		Skip:  !start.Before(end),
	}
}
