package forecast

import (
	"context"

	"github.com/apex-analytics/apexfeed/internal/types"
	"github.com/apex-analytics/apexfeed/pkg/errors"
)

// Model discriminator values used in prediction artifacts.
const (
	ModelNameTrend = "Prophet"
	ModelNameAuto  = "LightGBM"
)

// Model is a black-box forecast generator. Implementations receive the full
// historical series and a window, and return a raw trajectory that still
// needs reconciliation.
type Model interface {
	Name() string
	Predict(ctx context.Context, hist types.Series, window types.ForecastWindow) (RawForecast, error)
}

// FlatModel repeats the last close across the horizon. It serves as the
// fallback when a real model fails, so reconciliation always has input.
type FlatModel struct{}

func (FlatModel) Name() string { return "Flat" }

func (FlatModel) Predict(_ context.Context, hist types.Series, window types.ForecastWindow) (RawForecast, error) {
	lastClose, ok := hist.LastClose()
	if !ok {
		return RawForecast{}, errors.New(errors.ErrCodeHistoryTooShort, "history carries no close values")
	}

	raw := RawForecast{
		Dates: futureDateStrings(window),
		Close: make([]float64, window.Periods),
	}

	for i := range raw.Close {
		raw.Close[i] = lastClose
	}

	return raw, nil
}

func futureDateStrings(window types.ForecastWindow) []string {
	times := window.FutureDates()

	dates := make([]string, len(times))
	for i, t := range times {
		dates[i] = window.FormatDate(t)
	}

	return dates
}
