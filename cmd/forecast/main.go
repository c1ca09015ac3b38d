package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/apex-analytics/apexfeed/internal/config"
	"github.com/apex-analytics/apexfeed/internal/forecast"
	"github.com/apex-analytics/apexfeed/internal/logger"
	"github.com/apex-analytics/apexfeed/internal/types"
)

// forecastAction runs both forecast models for one ticker and writes the
// prediction artifact.
func forecastAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd.Bool("debug"))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	service := forecast.NewService(cfg, log)

	analysis, err := service.Analyze(ctx, forecast.AnalyzeRequest{
		Ticker:   cmd.String("ticker"),
		Exchange: cmd.String("exchange"),
		Cadence:  types.Cadence(cmd.String("cadence")),
		Periods:  int(cmd.Int("periods")),
	})
	if err != nil {
		return fmt.Errorf("forecast failed: %w", err)
	}

	log.Info("forecast written",
		zap.String("run_id", analysis.RunID),
		zap.String("artifact", service.ArtifactPath(analysis.Window.Ticker, analysis.Window.Exchange)))

	for model, reason := range analysis.Fallbacks {
		log.Warn("model fell back to flat trajectory",
			zap.String("model", model),
			zap.String("reason", reason))
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
		Name:  "forecast",
		Usage: "Generate bounded OHLC forecasts for a ticker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "ticker",
				Aliases:  []string{"t"},
				Usage:    "Ticker symbol, exchange suffix included (e.g. INFY.NS)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "exchange",
				Aliases: []string{"e"},
				Usage:   "Exchange the ticker trades on (BSE or NSE)",
				Value:   "NSE",
			},
			&cli.StringFlag{
				Name:    "cadence",
				Usage:   "Forecast cadence: day, hour or minute",
				Value:   string(types.CadenceDay),
			},
			&cli.IntFlag{
				Name:    "periods",
				Aliases: []string{"n"},
				Usage:   "Horizon length (defaults to the cadence's standard horizon)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file (defaults are used when omitted)",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
			},
		},
		Action: forecastAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
