package forecast

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/moznion/go-optional"

	"github.com/apex-analytics/apexfeed/internal/types"
	"github.com/apex-analytics/apexfeed/pkg/errors"
)

// artifactColumns is the prediction CSV schema.
var artifactColumns = []string{"Date", "Type", "Open", "High", "Low", "Close", "Model"}

// ArtifactWriter persists prediction CSVs combining a historical tail with
// the bounded forecasts of both models.
type ArtifactWriter struct {
	dir string
}

// NewArtifactWriter writes artifacts under dir.
func NewArtifactWriter(dir string) *ArtifactWriter {
	return &ArtifactWriter{dir: dir}
}

// Path returns the artifact file path for a ticker:
// <base>_<suffix>_prediction.csv, where the suffix is BO for BSE and NS
// otherwise.
func (w *ArtifactWriter) Path(ticker, exchange string) string {
	suffix := "NS"
	if strings.EqualFold(exchange, "BSE") {
		suffix = "BO"
	}

	base := strings.TrimSuffix(strings.TrimSuffix(ticker, ".NS"), ".BO")
	base = strings.ReplaceAll(base, ".", "_")

	return filepath.Join(w.dir, base+"_"+suffix+"_prediction.csv")
}

// Write serializes the artifact: the last Periods historical bars tagged
// Historical, then each model's forecast rows tagged Prediction with the
// model name as discriminator.
func (w *ArtifactWriter) Write(window types.ForecastWindow, hist types.Series, forecasts map[string]BoundedForecast) error {
	path := w.Path(window.Ticker, window.Exchange)

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodeArtifactFailed, err, "failed to create predictions directory %s", w.dir)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeArtifactFailed, err, "failed to create artifact %s", path)
	}
	defer f.Close()

	cw := csv.NewWriter(f)

	if err := cw.Write(artifactColumns); err != nil {
		return errors.Wrapf(errors.ErrCodeArtifactFailed, err, "failed to write artifact header for %s", path)
	}

	for _, b := range hist.Tail(window.Periods) {
		record := []string{
			b.Date,
			"Historical",
			formatArtifactField(b.Open),
			formatArtifactField(b.High),
			formatArtifactField(b.Low),
			formatArtifactField(b.Close),
			"Historical",
		}

		if err := cw.Write(record); err != nil {
			return errors.Wrapf(errors.ErrCodeArtifactFailed, err, "failed to write historical row for %s", path)
		}
	}

	for _, model := range []string{ModelNameTrend, ModelNameAuto} {
		fc, ok := forecasts[model]
		if !ok {
			continue
		}

		for i, date := range fc.Dates {
			record := []string{
				date,
				"Prediction",
				formatFloat(fc.Open[i]),
				formatFloat(fc.High[i]),
				formatFloat(fc.Low[i]),
				formatFloat(fc.Close[i]),
				model,
			}

			if err := cw.Write(record); err != nil {
				return errors.Wrapf(errors.ErrCodeArtifactFailed, err, "failed to write prediction row for %s", path)
			}
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return errors.Wrapf(errors.ErrCodeArtifactFailed, err, "failed to flush artifact %s", path)
	}

	return nil
}

func formatArtifactField(v optional.Option[float64]) string {
	if v.IsNone() {
		return ""
	}

	return formatFloat(v.Unwrap())
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
