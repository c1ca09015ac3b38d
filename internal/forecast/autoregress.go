package forecast

import (
	"context"
	"math"

	"github.com/apex-analytics/apexfeed/internal/types"
	"github.com/apex-analytics/apexfeed/pkg/errors"
)

// autoRegressMinRows is the minimum number of complete feature rows the
// regressor needs before fitting.
const autoRegressMinRows = 5

// AutoRegressor fits a multi-output regressor from three engineered
// features — 7-period and 30-period trailing means of Close and the
// previous Close — to all four price fields, then predicts iteratively: each
// step's output is appended to the trailing window before the next step's
// features are computed. Errors compound across the horizon, which is what
// the reconciliation band exists to contain.
type AutoRegressor struct{}

func (AutoRegressor) Name() string { return ModelNameAuto }

func (AutoRegressor) Predict(_ context.Context, hist types.Series, window types.ForecastWindow) (RawForecast, error) {
	var (
		features [][3]float64
		targets  [][4]float64
		closes   []float64
	)

	for _, b := range hist {
		if b.Close.IsNone() {
			continue
		}

		closes = append(closes, b.Close.Unwrap())

		if !b.HasOHLC() {
			continue
		}

		i := len(closes) - 1

		lag := closes[i]
		if i > 0 {
			lag = closes[i-1]
		}

		features = append(features, [3]float64{
			trailingMeanAt(closes, i, 7),
			trailingMeanAt(closes, i, 30),
			lag,
		})
		targets = append(targets, [4]float64{
			b.Open.Unwrap(), b.High.Unwrap(), b.Low.Unwrap(), b.Close.Unwrap(),
		})
	}

	if len(features) < autoRegressMinRows {
		return RawForecast{}, errors.NewInsufficientDataErrorf(autoRegressMinRows, len(features), window.Ticker,
			"need %d complete feature rows to fit regressor, have %d", autoRegressMinRows, len(features))
	}

	coeffs, err := fitMultiOutput(features, targets)
	if err != nil {
		return RawForecast{}, err
	}

	raw := RawForecast{
		Dates: futureDateStrings(window),
		Open:  make([]float64, window.Periods),
		High:  make([]float64, window.Periods),
		Low:   make([]float64, window.Periods),
		Close: make([]float64, window.Periods),
	}

	for k := 0; k < window.Periods; k++ {
		i := len(closes) - 1
		f := [3]float64{
			trailingMeanAt(closes, i, 7),
			trailingMeanAt(closes, i, 30),
			closes[i],
		}

		var pred [4]float64
		for out := 0; out < 4; out++ {
			pred[out] = coeffs[out][0] + coeffs[out][1]*f[0] + coeffs[out][2]*f[1] + coeffs[out][3]*f[2]
		}

		raw.Open[k], raw.High[k], raw.Low[k], raw.Close[k] = pred[0], pred[1], pred[2], pred[3]

		closes = append(closes, pred[3])
	}

	return raw, nil
}

// trailingMeanAt averages vals[i-window+1 .. i], clamped at the start.
func trailingMeanAt(vals []float64, i, window int) float64 {
	lo := i - window + 1
	if lo < 0 {
		lo = 0
	}

	sum := 0.0
	for _, v := range vals[lo : i+1] {
		sum += v
	}

	return sum / float64(i+1-lo)
}

// fitMultiOutput solves one ordinary-least-squares fit per output column,
// with an intercept term. Returned coefficients are [intercept, f0, f1, f2]
// per output.
func fitMultiOutput(features [][3]float64, targets [][4]float64) ([4][4]float64, error) {
	const dim = 4 // intercept + 3 features

	var xtx [dim][dim]float64

	var xty [dim][4]float64

	for r, f := range features {
		row := [dim]float64{1, f[0], f[1], f[2]}

		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				xtx[i][j] += row[i] * row[j]
			}

			for out := 0; out < 4; out++ {
				xty[i][out] += row[i] * targets[r][out]
			}
		}
	}

	var coeffs [4][4]float64

	for out := 0; out < 4; out++ {
		var b [dim]float64
		for i := 0; i < dim; i++ {
			b[i] = xty[i][out]
		}

		sol, ok := solveLinear(xtx, b)
		if !ok {
			return coeffs, errors.New(errors.ErrCodeModelFailed, "normal equations are singular")
		}

		coeffs[out] = sol
	}

	return coeffs, nil
}

// solveLinear solves a 4x4 system with partial pivoting.
func solveLinear(a [4][4]float64, b [4]float64) ([4]float64, bool) {
	const dim = 4

	for col := 0; col < dim; col++ {
		pivot := col
		for r := col + 1; r < dim; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}

		if math.Abs(a[pivot][col]) < 1e-12 {
			return [4]float64{}, false
		}

		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < dim; r++ {
			factor := a[r][col] / a[col][col]
			for c := col; c < dim; c++ {
				a[r][c] -= factor * a[col][c]
			}

			b[r] -= factor * b[col]
		}
	}

	var x [4]float64

	for r := dim - 1; r >= 0; r-- {
		x[r] = b[r]
		for c := r + 1; c < dim; c++ {
			x[r] -= a[r][c] * x[c]
		}

		x[r] /= a[r][r]
	}

	return x, true
}
