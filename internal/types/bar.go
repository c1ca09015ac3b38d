package types

import (
	"sort"
	"time"

	"github.com/moznion/go-optional"
)

// DateLayout is the canonical on-disk date format for all historical data.
const DateLayout = "2006-01-02"

// CanonicalColumns is the fixed 7-column schema every historical file is
// normalized into.
var CanonicalColumns = []string{"Date", "Open", "High", "Low", "Close", "Volume", "Stock"}

// Bar is one row of OHLCV data for a single date/ticker. Price and volume
// fields are optional because ingested files may be missing any of them;
// synthesized forecast bars always carry all four prices.
type Bar struct {
	// Date is the calendar date in YYYY-MM-DD form, no time component.
	Date   string
	Open   optional.Option[float64]
	High   optional.Option[float64]
	Low    optional.Option[float64]
	Close  optional.Option[float64]
	Volume optional.Option[float64]
	// Stock is the ticker identifier, exchange suffix included (e.g. INFY.NS).
	Stock string
}

// NewOHLCBar builds a bar carrying all four prices and no volume, used for
// synthesized forecast rows.
func NewOHLCBar(date string, open, high, low, close float64, stock string) Bar {
	return Bar{
		Date:  date,
		Open:  optional.Some(open),
		High:  optional.Some(high),
		Low:   optional.Some(low),
		Close: optional.Some(close),
		Stock: stock,
	}
}

// HasOHLC reports whether all four price fields are present.
func (b Bar) HasOHLC() bool {
	return b.Open.IsSome() && b.High.IsSome() && b.Low.IsSome() && b.Close.IsSome()
}

// Series is an ordered sequence of bars, strictly increasing by date and
// unique per date once SortDedupe has run.
type Series []Bar

// Dates returns the date strings in series order.
func (s Series) Dates() []string {
	dates := make([]string, len(s))
	for i, b := range s {
		dates[i] = b.Date
	}

	return dates
}

// DateSet returns the set of dates present in the series.
func (s Series) DateSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s))
	for _, b := range s {
		set[b.Date] = struct{}{}
	}

	return set
}

// LastDate returns the maximum date in the series, or false when the series
// is empty or no date parses.
func (s Series) LastDate() (time.Time, bool) {
	var last time.Time

	found := false

	for _, b := range s {
		t, err := time.Parse(DateLayout, b.Date)
		if err != nil {
			continue
		}

		if !found || t.After(last) {
			last = t
			found = true
		}
	}

	return last, found
}

// LastClose returns the close of the final bar carrying one.
func (s Series) LastClose() (float64, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Close.IsSome() {
			return s[i].Close.Unwrap(), true
		}
	}

	return 0, false
}

// Closes returns the close values of bars that carry one, in series order.
func (s Series) Closes() []float64 {
	closes := make([]float64, 0, len(s))

	for _, b := range s {
		if b.Close.IsSome() {
			closes = append(closes, b.Close.Unwrap())
		}
	}

	return closes
}

// SortDedupe removes duplicate dates keeping the last occurrence and sorts the
// result ascending by date string. YYYY-MM-DD sorts correctly as text.
func (s Series) SortDedupe() Series {
	lastIdx := make(map[string]int, len(s))
	for i, b := range s {
		lastIdx[b.Date] = i
	}

	out := make(Series, 0, len(lastIdx))

	for i, b := range s {
		if lastIdx[b.Date] == i {
			out = append(out, b)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })

	return out
}

// Tail returns the final n bars, or the whole series when shorter.
func (s Series) Tail(n int) Series {
	if n >= len(s) {
		return s
	}

	return s[len(s)-n:]
}
