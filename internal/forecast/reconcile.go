package forecast

import (
	"math/rand"

	"github.com/apex-analytics/apexfeed/internal/types"
	"github.com/apex-analytics/apexfeed/pkg/errors"
)

// RawForecast is a model's unbounded output over a forecast window. Close is
// always populated; Open/High/Low may be nil for Close-only models (the
// reconciler resynthesizes them regardless).
type RawForecast struct {
	Dates []string
	Open  []float64
	High  []float64
	Low   []float64
	Close []float64
}

// BoundedForecast is the reconciled result: all four price fields inside
// the band, OHLC ordering enforced.
type BoundedForecast struct {
	Dates []string
	Open  []float64
	High  []float64
	Low   []float64
	Close []float64
	Band  Band
}

// Reconcile bounds a raw Close trajectory and synthesizes Open/High/Low
// deterministically around it:
//
//  1. Clip Close into the band.
//  2. Smooth with a trailing moving average, then re-clip (smoothing can
//     push edge values back out) and re-floor.
//  3. Draw seeded uniform offsets and build High, Low and Open from the
//     finalized Close, with Open anchored on the previous period's Close.
//  4. Clip the synthesized fields, then enforce High >= max(Open, Close)
//     and Low <= min(Open, Close).
//  5. Final clip of all four fields into [floor, upper].
//
// The same procedure applies regardless of which model produced the input.
func Reconcile(raw RawForecast, lastClose float64, p BandParams) (BoundedForecast, error) {
	n := len(raw.Close)
	if n == 0 {
		return BoundedForecast{}, errors.New(errors.ErrCodeReconcileFailed, "raw forecast has no close trajectory")
	}

	if len(raw.Dates) != n {
		return BoundedForecast{}, errors.Newf(errors.ErrCodeReconcileFailed,
			"date/close length mismatch: %d vs %d", len(raw.Dates), n)
	}

	band := p.Bounds(lastClose)

	closes := make([]float64, n)
	for i, c := range raw.Close {
		closes[i] = clip(c, band.Lower, band.Upper)
	}

	if p.SmoothWindow > 1 {
		closes = trailingMean(closes, p.SmoothWindow)

		for i, c := range closes {
			closes[i] = clip(c, band.Lower, band.Upper)
		}
	}

	for i, c := range closes {
		if c < band.Floor {
			closes[i] = band.Floor
		}
	}

	// Offsets are drawn field-major from a fixed seed: all High offsets,
	// then all Low offsets, then all Open offsets. Reordering the draws
	// changes every historical artifact, so keep it stable.
	rng := rand.New(rand.NewSource(p.Seed))
	highOffsets := uniformSlice(rng, p.Volatility/2, p.Volatility, n)
	lowOffsets := uniformSlice(rng, p.Volatility/2, p.Volatility, n)
	openOffsets := uniformSlice(rng, -p.Volatility/2, p.Volatility/2, n)

	out := BoundedForecast{
		Dates: raw.Dates,
		Open:  make([]float64, n),
		High:  make([]float64, n),
		Low:   make([]float64, n),
		Close: closes,
		Band:  band,
	}

	for i := 0; i < n; i++ {
		high := closes[i] * (1 + highOffsets[i])
		if high > band.Upper {
			high = band.Upper
		}

		low := closes[i] * (1 - lowOffsets[i])
		if low < band.Lower {
			low = band.Lower
		}

		prevClose := lastClose
		if i > 0 {
			prevClose = closes[i-1]
		}

		open := clip(prevClose*(1+openOffsets[i]), band.Lower, band.Upper)

		if open > high {
			high = open
		}

		if closes[i] > high {
			high = closes[i]
		}

		if open < low {
			low = open
		}

		if closes[i] < low {
			low = closes[i]
		}

		out.Open[i] = clip(open, band.Floor, band.Upper)
		out.High[i] = clip(high, band.Floor, band.Upper)
		out.Low[i] = clip(low, band.Floor, band.Upper)
		out.Close[i] = clip(closes[i], band.Floor, band.Upper)
	}

	return out, nil
}

// Bars converts the bounded forecast into canonical bars for a ticker.
func (f BoundedForecast) Bars(ticker string) types.Series {
	bars := make(types.Series, len(f.Dates))
	for i, d := range f.Dates {
		bars[i] = types.NewOHLCBar(d, f.Open[i], f.High[i], f.Low[i], f.Close[i], ticker)
	}

	return bars
}

// trailingMean applies a trailing moving average: element i averages the
// last window values ending at i, or fewer near the start.
func trailingMean(vals []float64, window int) []float64 {
	if window > len(vals) {
		window = len(vals)
	}

	out := make([]float64, len(vals))

	sum := 0.0

	for i, v := range vals {
		sum += v

		if i >= window {
			sum -= vals[i-window]
		}

		count := i + 1
		if count > window {
			count = window
		}

		out[i] = sum / float64(count)
	}

	return out
}

func uniformSlice(rng *rand.Rand, lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + rng.Float64()*(hi-lo)
	}

	return out
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
