package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Cadence is the period unit of a forecast horizon.
type Cadence string

const (
	CadenceDay    Cadence = "day"
	CadenceHour   Cadence = "hour"
	CadenceMinute Cadence = "minute"
)

// DefaultPeriods returns the standard horizon length for the cadence:
// 7 days, 24 hours or 60 minutes.
func (c Cadence) DefaultPeriods() int {
	switch c {
	case CadenceHour:
		return 24
	case CadenceMinute:
		return 60
	default:
		return 7
	}
}

// Step returns the duration of a single period.
func (c Cadence) Step() time.Duration {
	switch c {
	case CadenceHour:
		return time.Hour
	case CadenceMinute:
		return time.Minute
	default:
		return 24 * time.Hour
	}
}

// ForecastWindow defines the horizon and spacing of a single reconciliation
// run. It is immutable once constructed via NewForecastWindow.
type ForecastWindow struct {
	Ticker     string    `validate:"required"`
	Exchange   string    `validate:"required,oneof=BSE NSE"`
	Periods    int       `validate:"required,min=1"`
	Cadence    Cadence   `validate:"required,oneof=day hour minute"`
	AnchorDate time.Time `validate:"required"`
}

// NewForecastWindow validates and constructs a forecast window. AnchorDate is
// the last historical date; the generated future sequence starts one step
// after it.
func NewForecastWindow(ticker, exchange string, periods int, cadence Cadence, anchor time.Time) (ForecastWindow, error) {
	w := ForecastWindow{
		Ticker:     ticker,
		Exchange:   exchange,
		Periods:    periods,
		Cadence:    cadence,
		AnchorDate: anchor,
	}

	if err := validator.New().Struct(w); err != nil {
		return ForecastWindow{}, err
	}

	return w, nil
}

// FutureDates generates the anchor+k*step sequence for k=1..Periods.
func (w ForecastWindow) FutureDates() []time.Time {
	dates := make([]time.Time, w.Periods)

	step := w.Cadence.Step()
	for k := 1; k <= w.Periods; k++ {
		dates[k-1] = w.AnchorDate.Add(time.Duration(k) * step)
	}

	return dates
}

// FormatDate renders a future timestamp the way the prediction artifact
// expects it: date only for daily cadence, date and time otherwise.
func (w ForecastWindow) FormatDate(t time.Time) string {
	if w.Cadence == CadenceDay {
		return t.Format(DateLayout)
	}

	return t.Format("2006-01-02 15:04")
}
