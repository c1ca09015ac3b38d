package forecast

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex-analytics/apexfeed/internal/types"
	"github.com/apex-analytics/apexfeed/pkg/errors"
)

// histSeries builds a daily close-only history starting 2024-01-01.
func histSeries(closes ...float64) types.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s := make(types.Series, len(closes))
	for i, c := range closes {
		s[i] = types.Bar{
			Date:  start.AddDate(0, 0, i).Format(types.DateLayout),
			Close: optional.Some(c),
			Stock: "INFY.NS",
		}
	}

	return s
}

// ohlcSeries builds a daily history with all four prices derived from the
// close.
func ohlcSeries(closes ...float64) types.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s := make(types.Series, len(closes))
	for i, c := range closes {
		s[i] = types.NewOHLCBar(
			start.AddDate(0, 0, i).Format(types.DateLayout),
			c*0.99, c*1.01, c*0.98, c,
			"INFY.NS",
		)
	}

	return s
}

func dayWindow(t *testing.T, hist types.Series, periods int) types.ForecastWindow {
	t.Helper()

	anchor, ok := hist.LastDate()
	require.True(t, ok)

	window, err := types.NewForecastWindow("INFY.NS", "NSE", periods, types.CadenceDay, anchor)
	require.NoError(t, err)

	return window
}

func TestFlatModelRepeatsLastClose(t *testing.T) {
	hist := histSeries(100, 101, 102)
	window := dayWindow(t, hist, 4)

	raw, err := FlatModel{}.Predict(context.Background(), hist, window)
	require.NoError(t, err)
	require.Len(t, raw.Close, 4)

	for _, c := range raw.Close {
		assert.Equal(t, 102.0, c)
	}

	assert.Equal(t, []string{"2024-01-04", "2024-01-05", "2024-01-06", "2024-01-07"}, raw.Dates)
}

func TestFlatModelNoCloses(t *testing.T) {
	hist := types.Series{{Date: "2024-01-01"}}
	window := dayWindow(t, hist, 2)

	_, err := FlatModel{}.Predict(context.Background(), hist, window)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeHistoryTooShort))
}

func TestSeasonalTrendFollowsLinearGrowth(t *testing.T) {
	closes := make([]float64, 28)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	hist := histSeries(closes...)
	window := dayWindow(t, hist, 7)

	raw, err := SeasonalTrendModel{}.Predict(context.Background(), hist, window)
	require.NoError(t, err)
	require.Len(t, raw.Close, 7)

	last := closes[len(closes)-1]

	for i, c := range raw.Close {
		assert.False(t, math.IsNaN(c))

		// An upward trend extrapolates upward, inside the +-20% clamp.
		assert.Greater(t, c, last*0.99, "period %d", i)
		assert.LessOrEqual(t, c, last*1.2)
	}
}

func TestSeasonalTrendInsufficientData(t *testing.T) {
	hist := histSeries(100, 101, 102)
	window := dayWindow(t, hist, 7)

	_, err := SeasonalTrendModel{}.Predict(context.Background(), hist, window)
	require.Error(t, err)
	assert.True(t, errors.IsInsufficientDataError(err))
}

func TestSeasonalTrendIntradaySkipsLogSpace(t *testing.T) {
	closes := make([]float64, 48)
	for i := range closes {
		closes[i] = 200 + math.Sin(float64(i))
	}

	hist := histSeries(closes...)

	anchor, ok := hist.LastDate()
	require.True(t, ok)

	window, err := types.NewForecastWindow("INFY.NS", "NSE", 24, types.CadenceHour, anchor)
	require.NoError(t, err)

	raw, predictErr := SeasonalTrendModel{}.Predict(context.Background(), hist, window)
	require.NoError(t, predictErr)
	require.Len(t, raw.Close, 24)

	for _, c := range raw.Close {
		assert.Greater(t, c, 0.0)
	}
}

func TestAutoRegressorPredictsFullOHLC(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5 + math.Sin(float64(i))
	}

	hist := ohlcSeries(closes...)
	window := dayWindow(t, hist, 7)

	raw, err := AutoRegressor{}.Predict(context.Background(), hist, window)
	require.NoError(t, err)
	require.Len(t, raw.Close, 7)
	require.Len(t, raw.Open, 7)
	require.Len(t, raw.High, 7)
	require.Len(t, raw.Low, 7)

	last := closes[len(closes)-1]

	for _, c := range raw.Close {
		assert.False(t, math.IsNaN(c))
		assert.InDelta(t, last, c, last*0.5)
	}
}

func TestAutoRegressorInsufficientData(t *testing.T) {
	hist := ohlcSeries(100, 101, 102, 103)
	window := dayWindow(t, hist, 7)

	_, err := AutoRegressor{}.Predict(context.Background(), hist, window)
	require.Error(t, err)
	assert.True(t, errors.IsInsufficientDataError(err))
}

func TestAutoRegressorIgnoresIncompleteRows(t *testing.T) {
	hist := ohlcSeries(100, 101, 102, 103)
	// Close-only rows contribute to the trailing means but not to the fit.
	hist = append(hist, histSeries(104)...)

	window := dayWindow(t, hist, 3)

	_, err := AutoRegressor{}.Predict(context.Background(), hist, window)
	require.Error(t, err)
	assert.True(t, errors.IsInsufficientDataError(err))
}
