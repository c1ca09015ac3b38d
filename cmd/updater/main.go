package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/apex-analytics/apexfeed/internal/config"
	"github.com/apex-analytics/apexfeed/internal/fetch"
	"github.com/apex-analytics/apexfeed/internal/logger"
	"github.com/apex-analytics/apexfeed/internal/merge"
)

// updateAction runs the incremental batch update for the selected exchanges.
func updateAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd.Bool("debug"))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	updater := merge.NewUpdater(cfg, fetch.NewYahooProvider(), log, merge.UpdaterOptions{
		CreateMissing: cmd.Bool("create-missing"),
	})

	exchanges := cfg.Exchanges
	if ex := cmd.String("exchange"); ex != "" {
		exchanges = []string{ex}
	}

	tickers := cmd.StringSlice("tickers")
	if path := cmd.String("ticker-file"); path != "" {
		tickers, err = merge.ReadTickerFile(path)
		if err != nil {
			return err
		}
	}

	for _, exchange := range exchanges {
		if err := updater.Run(ctx, exchange, tickers); err != nil {
			log.Error("exchange update failed",
				zap.String("exchange", exchange),
				zap.Error(err))

			return err
		}
	}

	return nil
}

func newLogger(debug bool) (*logger.Logger, error) {
	if debug {
		return logger.NewDebugLogger()
	}

	return logger.NewLogger()
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

func main() {
	cmd := &cli.Command{
		Name:  "updater",
		Usage: "Incrementally update canonical historical OHLC files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file (defaults are used when omitted)",
			},
			&cli.StringFlag{
				Name:    "exchange",
				Aliases: []string{"e"},
				Usage:   "Update a single exchange (BSE or NSE) instead of all configured ones",
			},
			&cli.StringSliceFlag{
				Name:    "tickers",
				Aliases: []string{"t"},
				Usage:   "Explicit ticker symbols to update instead of the exchange's list file",
			},
			&cli.StringFlag{
				Name:  "ticker-file",
				Usage: "Read the ticker symbols from this file instead of the exchange's list file",
			},
			&cli.BoolFlag{
				Name:  "create-missing",
				Usage: "Create empty canonical files for tickers that do not have one yet",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
			},
		},
		Action: updateAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
