package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apex-analytics/apexfeed/internal/cache"
	"github.com/apex-analytics/apexfeed/internal/config"
	"github.com/apex-analytics/apexfeed/internal/logger"
	"github.com/apex-analytics/apexfeed/internal/merge"
	"github.com/apex-analytics/apexfeed/internal/types"
	"github.com/apex-analytics/apexfeed/pkg/errors"
)

const (
	historyCacheTTL      = 10 * time.Minute
	historyCacheCapacity = 128
)

// AnalyzeRequest asks for a forecast over one ticker.
type AnalyzeRequest struct {
	Ticker   string        `validate:"required"`
	Exchange string        `validate:"required,oneof=BSE NSE"`
	Cadence  types.Cadence `validate:"omitempty,oneof=day hour minute"`
	// Periods defaults to the cadence's standard horizon when zero.
	Periods int `validate:"min=0"`
}

// Analysis is one completed forecast run.
type Analysis struct {
	RunID      string
	Window     types.ForecastWindow
	LastClose  float64
	Historical types.Series
	// Forecasts maps model name to its reconciled output.
	Forecasts map[string]BoundedForecast
	// Fallbacks names the models whose own prediction failed, with the
	// reason; their Forecasts entry holds the flat fallback trajectory.
	Fallbacks map[string]string
}

// Service runs the full forecast pipeline: cached history load, both model
// adapters, reconciliation per cadence band, and artifact persistence.
type Service struct {
	store    *merge.Store
	writer   *ArtifactWriter
	models   []Model
	fallback Model
	history  *cache.TTLCache[types.Series]
	validate *validator.Validate
	logger   *logger.Logger
}

// NewService wires a service over the configured data and prediction
// directories.
func NewService(cfg config.Config, log *logger.Logger) *Service {
	return &Service{
		store:    merge.NewStore(cfg.DataDir),
		writer:   NewArtifactWriter(cfg.PredictionsDir),
		models:   []Model{SeasonalTrendModel{}, AutoRegressor{}},
		fallback: FlatModel{},
		history:  cache.NewTTLCache[types.Series](historyCacheCapacity, nil),
		validate: validator.New(),
		logger:   log,
	}
}

// Analyze produces both models' bounded forecasts for a ticker and persists
// the prediction artifact. Per-model failures fall back to a flat
// trajectory; only unusable history or a failed artifact write abort the
// run.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	if req.Cadence == "" {
		req.Cadence = types.CadenceDay
	}

	if req.Periods == 0 {
		req.Periods = req.Cadence.DefaultPeriods()
	}

	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid analyze request", err)
	}

	runID := uuid.NewString()

	hist, err := s.loadHistory(req.Exchange, req.Ticker)
	if err != nil {
		return nil, err
	}

	anchor, ok := hist.LastDate()
	if !ok {
		return nil, errors.Newf(errors.ErrCodeSeriesUnparseable, "no dated history for %s", req.Ticker)
	}

	lastClose, ok := hist.LastClose()
	if !ok {
		return nil, errors.Newf(errors.ErrCodeHistoryTooShort, "history for %s carries no close values", req.Ticker)
	}

	window, err := types.NewForecastWindow(req.Ticker, req.Exchange, req.Periods, req.Cadence, anchor)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid forecast window", err)
	}

	analysis := &Analysis{
		RunID:      runID,
		Window:     window,
		LastClose:  lastClose,
		Historical: hist.Tail(window.Periods),
		Forecasts:  make(map[string]BoundedForecast, len(s.models)),
		Fallbacks:  make(map[string]string),
	}

	for _, model := range s.models {
		raw, predictErr := model.Predict(ctx, hist, window)
		if predictErr != nil {
			if errors.IsInsufficientDataError(predictErr) {
				s.logger.Info("model has insufficient data, using flat fallback",
					zap.String("run_id", runID),
					zap.String("model", model.Name()),
					zap.Error(predictErr))
			} else {
				s.logger.Warn("model prediction failed, using flat fallback",
					zap.String("run_id", runID),
					zap.String("model", model.Name()),
					zap.Error(predictErr))
			}

			analysis.Fallbacks[model.Name()] = predictErr.Error()

			raw, predictErr = s.fallback.Predict(ctx, hist, window)
			if predictErr != nil {
				return nil, errors.Wrapf(errors.ErrCodeModelFailed, predictErr,
					"fallback prediction failed for %s", model.Name())
			}
		}

		bounded, reconcileErr := Reconcile(raw, lastClose, BandFor(model.Name(), window.Cadence))
		if reconcileErr != nil {
			return nil, errors.Wrapf(errors.ErrCodeReconcileFailed, reconcileErr,
				"reconciliation failed for %s", model.Name())
		}

		analysis.Forecasts[model.Name()] = bounded
	}

	if err := s.writer.Write(window, hist, analysis.Forecasts); err != nil {
		return nil, err
	}

	s.logger.Info("forecast run complete",
		zap.String("run_id", runID),
		zap.String("ticker", req.Ticker),
		zap.String("cadence", string(window.Cadence)),
		zap.Int("periods", window.Periods),
		zap.Int("fallbacks", len(analysis.Fallbacks)))

	return analysis, nil
}

// ArtifactPath returns where Analyze writes the ticker's prediction CSV.
func (s *Service) ArtifactPath(ticker, exchange string) string {
	return s.writer.Path(ticker, exchange)
}

func (s *Service) loadHistory(exchange, ticker string) (types.Series, error) {
	key := fmt.Sprintf("%s/%s", exchange, ticker)

	return s.history.GetOrLoad(key, historyCacheTTL, func() (types.Series, error) {
		hist, diag := s.store.Read(exchange, ticker)
		if len(hist) == 0 {
			return nil, errors.Newf(errors.ErrCodeFileUnreadable,
				"no usable history for %s at %s", ticker, diag.FilePath)
		}

		return hist, nil
	})
}
