package merge

import (
	"context"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/apex-analytics/apexfeed/internal/config"
	"github.com/apex-analytics/apexfeed/internal/fetch"
	"github.com/apex-analytics/apexfeed/internal/logger"
	"github.com/apex-analytics/apexfeed/internal/types"
	"github.com/apex-analytics/apexfeed/pkg/errors"
)

// UpdaterOptions tune a batch run.
type UpdaterOptions struct {
	// CreateMissing writes an empty canonical file for tickers that do not
	// have one yet before their update cycle runs.
	CreateMissing bool
	// Now overrides the clock, used by tests. Defaults to time.Now.
	Now func() time.Time
}

// Updater runs the read → normalize → fetch → merge → write cycle for every
// ticker of an exchange. Tickers are independent: failures are logged and
// skipped, never aborting the batch.
type Updater struct {
	cfg      config.Config
	store    *Store
	provider fetch.Provider
	logger   *logger.Logger
	limiter  *rate.Limiter
	opts     UpdaterOptions

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewUpdater creates an updater over the configured data directory.
func NewUpdater(cfg config.Config, provider fetch.Provider, log *logger.Logger, opts UpdaterOptions) *Updater {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Updater{
		cfg:      cfg,
		store:    NewStore(cfg.DataDir),
		provider: provider,
		logger:   log,
		limiter:  rate.NewLimiter(rate.Limit(cfg.FetchRatePerSec), cfg.FetchBurst),
		opts:     opts,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Store exposes the underlying file store.
func (u *Updater) Store() *Store {
	return u.store
}

// RunAll updates every configured exchange in order.
func (u *Updater) RunAll(ctx context.Context) error {
	for _, exchange := range u.cfg.Exchanges {
		if err := u.Run(ctx, exchange, nil); err != nil {
			return err
		}
	}

	return nil
}

// Run updates one exchange. When tickers is nil the exchange's ticker list
// file is used. Per-ticker work runs on a bounded pool; each ticker's file
// is guarded by a per-path lock so no two workers touch the same file.
// The returned error covers setup failures only, never per-ticker ones.
func (u *Updater) Run(ctx context.Context, exchange string, tickers []string) error {
	if len(tickers) == 0 {
		var err error

		tickers, err = ReadTickerList(u.cfg.TickerListDir, exchange)
		if err != nil {
			return err
		}
	}

	u.logger.Info("starting update batch",
		zap.String("exchange", exchange),
		zap.Int("tickers", len(tickers)),
		zap.Int("workers", u.cfg.Workers))

	bar := progressbar.Default(int64(len(tickers)), "updating "+exchange)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(u.cfg.Workers)

	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			defer func() {
				_ = bar.Add(1)
			}()

			if ctx.Err() != nil {
				// Stop scheduling new work; in-flight tickers finish.
				return nil
			}

			if err := u.updateTicker(ctx, exchange, ticker); err != nil {
				u.logger.Warn("ticker update failed",
					zap.String("exchange", exchange),
					zap.String("ticker", ticker),
					zap.Error(err))
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	_ = bar.Finish()

	return ctx.Err()
}

// updateTicker runs one ticker's full cycle under its file lock.
func (u *Updater) updateTicker(ctx context.Context, exchange, ticker string) error {
	lock := u.pathLock(u.store.Path(exchange, ticker))
	lock.Lock()
	defer lock.Unlock()

	if !u.store.Exists(exchange, ticker) {
		if !u.opts.CreateMissing {
			u.logger.Debug("no canonical file, skipping",
				zap.String("ticker", ticker))

			return nil
		}

		if err := u.store.Write(exchange, ticker, nil); err != nil {
			return err
		}
	}

	existing, diag := u.store.Read(exchange, ticker)
	if existing == nil {
		u.logger.Warn("existing history unreadable, repopulating from scratch",
			zap.String("ticker", ticker),
			zap.String("file", diag.FilePath))
	} else {
		// Write the normalized form back before fetching so a failed fetch
		// still leaves a clean file behind.
		if err := u.store.Write(exchange, ticker, existing); err != nil {
			return err
		}
	}

	defaultStart, err := time.Parse(types.DateLayout, u.cfg.DefaultStartDate)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "bad default start date %q", u.cfg.DefaultStartDate)
	}

	plan := PlanFetch(existing, defaultStart, u.opts.Now())
	if plan.Skip {
		u.logger.Debug("history already current",
			zap.String("ticker", ticker))

		return nil
	}

	if err := u.limiter.Wait(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeFetchFailed, "rate limiter interrupted", err)
	}

	table, err := u.provider.Fetch(ctx, ticker, plan.Start, plan.End)
	if err != nil {
		// Fetch failures never abort the batch; the file keeps its
		// normalized pre-fetch content.
		return err
	}

	fetched := fetch.ExtractCanonical(table, ticker)
	if len(fetched) == 0 {
		return errors.Newf(errors.ErrCodeFetchEmpty, "no usable rows extracted for %s", ticker)
	}

	result := Merge(existing, fetched)

	if err := u.store.Write(exchange, ticker, result.Series); err != nil {
		return err
	}

	u.logger.Info("ticker updated",
		zap.String("exchange", exchange),
		zap.String("ticker", ticker),
		zap.Int("added", result.Added),
		zap.Int("total", len(result.Series)))

	return nil
}

func (u *Updater) pathLock(path string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()

	lock, ok := u.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		u.locks[path] = lock
	}

	return lock
}
