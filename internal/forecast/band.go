// Package forecast produces bounded OHLC forecasts: black-box model
// adapters generate raw Close trajectories, and a reconciliation pass clips,
// smooths and synthesizes the final OHLC rows inside a band anchored on the
// last historical close.
package forecast

import "github.com/apex-analytics/apexfeed/internal/types"

const (
	// DefaultSeed drives the deterministic OHLC synthesis.
	DefaultSeed int64 = 42
	// DefaultVolatility is the fractional spread used for synthetic
	// High/Low/Open offsets.
	DefaultVolatility = 0.02
)

// BandParams tune the reconciliation band and smoothing for one model and
// cadence combination.
type BandParams struct {
	// MaxPct bounds the move as a fraction of the last close.
	MaxPct float64
	// AbsLimit bounds the move in absolute price units.
	AbsLimit float64
	// MinFrac sets the price floor as a fraction of the last close.
	MinFrac float64
	// SmoothWindow is the trailing moving-average window over Close; 1
	// disables smoothing.
	SmoothWindow int
	// Volatility is the synthetic OHLC spread fraction.
	Volatility float64
	// Seed drives the deterministic offset generator.
	Seed int64
}

// BandFor returns the tuned band for a model and cadence. Daily forecasts
// get a wide band; intraday trend forecasts get a tight one reflecting lower
// intra-session drift. The autoregressive model skips smoothing, the trend
// model smooths over 3 periods.
func BandFor(model string, cadence types.Cadence) BandParams {
	p := BandParams{
		Volatility: DefaultVolatility,
		Seed:       DefaultSeed,
	}

	switch {
	case model == ModelNameTrend && cadence == types.CadenceDay:
		p.MaxPct, p.AbsLimit, p.MinFrac, p.SmoothWindow = 0.35, 100.0, 0.01, 3
	case model == ModelNameTrend:
		p.MaxPct, p.AbsLimit, p.MinFrac, p.SmoothWindow = 0.10, 20.0, 0.5, 3
	case cadence == types.CadenceDay:
		p.MaxPct, p.AbsLimit, p.MinFrac, p.SmoothWindow = 0.35, 100.0, 0.01, 1
	default:
		p.MaxPct, p.AbsLimit, p.MinFrac, p.SmoothWindow = 0.35, 50.0, 0.01, 1
	}

	return p
}

// Band is a resolved [Lower, Upper] clipping range plus the hard price
// floor.
type Band struct {
	Lower float64
	Upper float64
	Floor float64
}

// Bounds resolves the band around a last close. The percentage and absolute
// constraints intersect conservatively; a degenerate band is widened so the
// range is never empty, even at a zero last close.
func (p BandParams) Bounds(lastClose float64) Band {
	floor := lastClose * p.MinFrac
	if floor < 0.01 {
		floor = 0.01
	}

	lower := max3(floor, lastClose*(1-p.MaxPct), lastClose-p.AbsLimit)
	upper := lastClose * (1 + p.MaxPct)

	if byAbs := lastClose + p.AbsLimit; byAbs < upper {
		upper = byAbs
	}

	if upper <= lower {
		widen := lastClose * 0.01
		if widen < 0.01 {
			widen = 0.01
		}

		upper = lower + widen
	}

	return Band{Lower: lower, Upper: upper, Floor: floor}
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}

	if c > m {
		m = c
	}

	return m
}
