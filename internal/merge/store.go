package merge

import (
	"bufio"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/moznion/go-optional"

	"github.com/apex-analytics/apexfeed/internal/csvrepair"
	"github.com/apex-analytics/apexfeed/internal/types"
	"github.com/apex-analytics/apexfeed/pkg/errors"
)

// Store maps tickers to canonical CSV files on disk. Layout:
// <dataDir>/<EXCHANGE>/<ticker with dots replaced by underscores>.csv.
type Store struct {
	dataDir string
}

// NewStore creates a store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// Path returns the canonical file path for a ticker on an exchange.
func (s *Store) Path(exchange, ticker string) string {
	name := strings.ReplaceAll(ticker, ".", "_") + ".csv"

	return filepath.Join(s.dataDir, exchange, name)
}

// Exists reports whether the ticker already has a canonical file.
func (s *Store) Exists(exchange, ticker string) bool {
	_, err := os.Stat(s.Path(exchange, ticker))

	return err == nil
}

// Read loads and normalizes a ticker's historical file. The tolerant reader
// never errors; a missing or hopeless file comes back as a nil series, which
// callers treat as absent history.
func (s *Store) Read(exchange, ticker string) (types.Series, csvrepair.Diagnostics) {
	table, diag := csvrepair.ReadFlexible(s.Path(exchange, ticker))

	return csvrepair.NewNormalizer().Normalize(table, ticker), diag
}

// Write serializes a canonical series to the ticker's file, creating the
// exchange directory as needed. The write is atomic: a temp file in the same
// directory is renamed over the target.
func (s *Store) Write(exchange, ticker string, series types.Series) error {
	path := s.Path(exchange, ticker)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodeCanonicalWriteError, err, "failed to create directory for %s", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(errors.ErrCodeCanonicalWriteError, err, "failed to create temp file for %s", path)
	}

	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	w := csv.NewWriter(tmp)

	if err := w.Write(types.CanonicalColumns); err != nil {
		return errors.Wrapf(errors.ErrCodeCanonicalWriteError, err, "failed to write header for %s", path)
	}

	for _, b := range series {
		record := []string{
			b.Date,
			formatOptional(b.Open),
			formatOptional(b.High),
			formatOptional(b.Low),
			formatOptional(b.Close),
			formatOptional(b.Volume),
			b.Stock,
		}

		if err := w.Write(record); err != nil {
			return errors.Wrapf(errors.ErrCodeCanonicalWriteError, err, "failed to write row for %s", path)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return errors.Wrapf(errors.ErrCodeCanonicalWriteError, err, "failed to flush %s", path)
	}

	if err := tmp.Close(); err != nil {
		return errors.Wrapf(errors.ErrCodeCanonicalWriteError, err, "failed to close temp file for %s", path)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(errors.ErrCodeCanonicalWriteError, err, "failed to replace %s", path)
	}

	return nil
}

// ReadTickerList loads the exchange's default list from
// <listDir>/<EXCHANGE>.txt.
func ReadTickerList(listDir, exchange string) ([]string, error) {
	return ReadTickerFile(filepath.Join(listDir, exchange+".txt"))
}

// ReadTickerFile loads one symbol per line from the given file, skipping
// blanks and #-comments.
func ReadTickerFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeTickerListMissing, err, "failed to open ticker list %s", path)
	}
	defer f.Close()

	var tickers []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		tickers = append(tickers, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeTickerListMissing, err, "failed to read ticker list %s", path)
	}

	return tickers, nil
}

func formatOptional(v optional.Option[float64]) string {
	if v.IsNone() {
		return ""
	}

	return strconv.FormatFloat(v.Unwrap(), 'f', -1, 64)
}
