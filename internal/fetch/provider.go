// Package fetch retrieves recent history for a ticker from the external
// quote provider and extracts the canonical columns from the provider's
// wide response tables.
package fetch

import (
	"context"
	"time"

	"github.com/apex-analytics/apexfeed/internal/csvrepair"
)

// Provider downloads raw historical data for a single ticker over the
// half-open date range [start, end). The end date is exclusive: callers that
// want today's bar must pass tomorrow.
//
// The returned table is "wide": column names may carry the ticker as a
// suffix (e.g. "Open_INFY.NS") and must go through ExtractCanonical before
// merging.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string
	// Fetch downloads the range. A successful call with zero rows is
	// reported as an error with code ErrCodeFetchEmpty.
	Fetch(ctx context.Context, ticker string, start, end time.Time) (*csvrepair.Table, error)
}
