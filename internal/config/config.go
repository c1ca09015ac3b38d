// Package config loads the pipeline configuration from YAML and validates
// it.
package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/apex-analytics/apexfeed/pkg/errors"
)

// DefaultStartDate is the beginning of full historical repopulation when a
// ticker has no usable on-disk history.
const DefaultStartDate = "2020-01-01"

// Config holds the pipeline configuration.
type Config struct {
	// DataDir is the root of the canonical per-exchange CSV store.
	DataDir string `yaml:"data_dir" validate:"required"`
	// PredictionsDir receives forecast artifact files.
	PredictionsDir string `yaml:"predictions_dir" validate:"required"`
	// Exchanges lists the exchange subdirectories to process.
	Exchanges []string `yaml:"exchanges" validate:"required,min=1,dive,oneof=BSE NSE"`
	// DefaultStartDate seeds full repopulation, YYYY-MM-DD.
	DefaultStartDate string `yaml:"default_start_date" validate:"required,datetime=2006-01-02"`
	// TickerListDir holds one <EXCHANGE>.txt symbol list per exchange.
	TickerListDir string `yaml:"ticker_list_dir" validate:"required"`
	// Workers bounds the per-ticker worker pool.
	Workers int `yaml:"workers" validate:"required,min=1,max=64"`
	// FetchRatePerSec throttles provider requests.
	FetchRatePerSec float64 `yaml:"fetch_rate_per_sec" validate:"required,gt=0"`
	// FetchBurst is the limiter burst size.
	FetchBurst int `yaml:"fetch_burst" validate:"required,min=1"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		DataDir:          "Data",
		PredictionsDir:   "predictions",
		Exchanges:        []string{"BSE", "NSE"},
		DefaultStartDate: DefaultStartDate,
		TickerListDir:    "tickers",
		Workers:          4,
		FetchRatePerSec:  2,
		FetchBurst:       1,
	}
}

// Load reads a YAML config file, applies defaults for omitted fields, and
// validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse config file %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration against its constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return nil
}
