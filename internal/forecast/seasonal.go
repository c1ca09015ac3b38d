package forecast

import (
	"context"
	"math"

	"github.com/apex-analytics/apexfeed/internal/types"
	"github.com/apex-analytics/apexfeed/pkg/errors"
)

// seasonalMinRows is the minimum history needed to separate trend from
// seasonality.
const seasonalMinRows = 10

// SeasonalTrendModel decomposes the Close series into a linear trend plus
// per-phase seasonal means (weekly phase for daily data, intra-day phase
// otherwise) and extrapolates both. Daily data is fit in log1p space so the
// forecast stays positive under multiplicative growth.
//
// Output is Close-only; the reconciler synthesizes the other fields.
type SeasonalTrendModel struct{}

func (SeasonalTrendModel) Name() string { return ModelNameTrend }

func (SeasonalTrendModel) Predict(_ context.Context, hist types.Series, window types.ForecastWindow) (RawForecast, error) {
	closes := hist.Closes()
	n := len(closes)

	if n < seasonalMinRows {
		return RawForecast{}, errors.NewInsufficientDataErrorf(seasonalMinRows, n, window.Ticker,
			"need %d close values to fit trend and seasonality, have %d", seasonalMinRows, n)
	}

	lastClose := closes[n-1]

	logSpace := window.Cadence == types.CadenceDay

	y := make([]float64, n)
	for i, c := range closes {
		if logSpace {
			y[i] = math.Log1p(c)
		} else {
			y[i] = c
		}
	}

	intercept, slope := fitTrend(y)

	period := seasonalPeriod(window.Cadence)
	phaseMeans := seasonalResiduals(y, intercept, slope, period)

	raw := RawForecast{
		Dates: futureDateStrings(window),
		Close: make([]float64, window.Periods),
	}

	for k := 1; k <= window.Periods; k++ {
		t := n - 1 + k

		v := intercept + slope*float64(t) + phaseMeans[t%period]
		if logSpace {
			v = math.Expm1(v)
		}

		// Trend extrapolation drifts fast on short histories; keep the raw
		// output within +-20% of the anchor before reconciliation.
		raw.Close[k-1] = clip(v, lastClose*0.8, lastClose*1.2)
	}

	return raw, nil
}

// fitTrend computes the least-squares line over t = 0..n-1.
func fitTrend(y []float64) (intercept, slope float64) {
	n := float64(len(y))

	var sumT, sumY, sumTY, sumTT float64

	for i, v := range y {
		t := float64(i)
		sumT += t
		sumY += v
		sumTY += t * v
		sumTT += t * t
	}

	denom := n*sumTT - sumT*sumT
	if denom == 0 {
		return sumY / n, 0
	}

	slope = (n*sumTY - sumT*sumY) / denom
	intercept = (sumY - slope*sumT) / n

	return intercept, slope
}

func seasonalPeriod(c types.Cadence) int {
	switch c {
	case types.CadenceHour:
		return 24
	case types.CadenceMinute:
		return 60
	default:
		return 7
	}
}

// seasonalResiduals averages the detrended values per phase. Phases never
// observed stay at zero.
func seasonalResiduals(y []float64, intercept, slope float64, period int) []float64 {
	sums := make([]float64, period)
	counts := make([]int, period)

	for i, v := range y {
		phase := i % period
		sums[phase] += v - (intercept + slope*float64(i))
		counts[phase]++
	}

	means := make([]float64, period)

	for p := range means {
		if counts[p] > 0 {
			means[p] = sums[p] / float64(counts[p])
		}
	}

	return means
}
