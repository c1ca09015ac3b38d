package merge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/apex-analytics/apexfeed/internal/config"
	"github.com/apex-analytics/apexfeed/internal/csvrepair"
	"github.com/apex-analytics/apexfeed/internal/fetch"
	"github.com/apex-analytics/apexfeed/internal/logger"
	"github.com/apex-analytics/apexfeed/pkg/errors"
)

type fakeProvider struct {
	table *csvrepair.Table
	err   error

	calls     int
	lastStart time.Time
	lastEnd   time.Time
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Fetch(_ context.Context, _ string, start, end time.Time) (*csvrepair.Table, error) {
	f.calls++
	f.lastStart = start
	f.lastEnd = end

	if f.err != nil {
		return nil, f.err
	}

	return f.table, nil
}

func wideTable(rows ...[]string) *csvrepair.Table {
	return &csvrepair.Table{
		Columns: []string{"Date", "Open_INFY.NS", "High_INFY.NS", "Low_INFY.NS", "Close_INFY.NS", "Volume_INFY.NS"},
		Rows:    rows,
	}
}

type UpdaterTestSuite struct {
	suite.Suite
	cfg      config.Config
	provider *fakeProvider
	log      *logger.Logger
	now      time.Time
}

func TestUpdaterSuite(t *testing.T) {
	suite.Run(t, new(UpdaterTestSuite))
}

func (suite *UpdaterTestSuite) SetupTest() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	suite.log = log
	suite.provider = &fakeProvider{}
	suite.now = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	cfg := config.DefaultConfig()
	cfg.DataDir = suite.T().TempDir()
	cfg.TickerListDir = suite.T().TempDir()
	cfg.Workers = 1
	cfg.FetchRatePerSec = 1000
	suite.cfg = cfg
}

func (suite *UpdaterTestSuite) newUpdater(createMissing bool) *Updater {
	return NewUpdater(suite.cfg, suite.provider, suite.log, UpdaterOptions{
		CreateMissing: createMissing,
		Now:           func() time.Time { return suite.now },
	})
}

func (suite *UpdaterTestSuite) TestFullRepopulationForMissingFile() {
	suite.provider.table = wideTable(
		[]string{"2024-01-08", "100", "101", "99", "100.5", "1000"},
		[]string{"2024-01-09", "100.5", "102", "100", "101.5", "1200"},
	)

	updater := suite.newUpdater(true)
	suite.Require().NoError(updater.Run(context.Background(), "NSE", []string{"INFY.NS"}))

	suite.Equal(1, suite.provider.calls)
	suite.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), suite.provider.lastStart)
	suite.Equal(time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), suite.provider.lastEnd)

	got, _ := updater.Store().Read("NSE", "INFY.NS")
	suite.Require().Len(got, 2)
	suite.Equal("2024-01-08", got[0].Date)
	suite.Equal("INFY.NS", got[0].Stock)
}

func (suite *UpdaterTestSuite) TestMissingFileSkippedWithoutCreateMissing() {
	updater := suite.newUpdater(false)
	suite.Require().NoError(updater.Run(context.Background(), "NSE", []string{"INFY.NS"}))

	suite.Zero(suite.provider.calls)
	suite.False(updater.Store().Exists("NSE", "INFY.NS"))
}

func (suite *UpdaterTestSuite) TestIncrementalFetchWindow() {
	updater := suite.newUpdater(true)
	suite.Require().NoError(updater.Store().Write("NSE", "INFY.NS",
		fetch.ExtractCanonical(wideTable(
			[]string{"2024-01-05", "90", "91", "89", "90.5", "800"},
		), "INFY.NS")))

	suite.provider.table = wideTable(
		[]string{"2024-01-08", "100", "101", "99", "100.5", "1000"},
	)

	suite.Require().NoError(updater.Run(context.Background(), "NSE", []string{"INFY.NS"}))

	suite.Equal(1, suite.provider.calls)
	suite.Equal(time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), suite.provider.lastStart)

	got, _ := updater.Store().Read("NSE", "INFY.NS")
	suite.Require().Len(got, 2)
	suite.Equal("2024-01-05", got[0].Date)
	suite.Equal("2024-01-08", got[1].Date)
}

func (suite *UpdaterTestSuite) TestSkipWhenAlreadyCurrent() {
	updater := suite.newUpdater(true)
	suite.Require().NoError(updater.Store().Write("NSE", "INFY.NS",
		fetch.ExtractCanonical(wideTable(
			[]string{"2024-01-10", "100", "101", "99", "100.5", "1000"},
		), "INFY.NS")))

	suite.Require().NoError(updater.Run(context.Background(), "NSE", []string{"INFY.NS"}))

	// Today's bar is already on disk: no fetch, file still readable.
	suite.Zero(suite.provider.calls)

	got, _ := updater.Store().Read("NSE", "INFY.NS")
	suite.Require().Len(got, 1)
	suite.Equal("2024-01-10", got[0].Date)
}

func (suite *UpdaterTestSuite) TestFetchFailureLeavesFileIntact() {
	updater := suite.newUpdater(true)
	suite.Require().NoError(updater.Store().Write("NSE", "INFY.NS",
		fetch.ExtractCanonical(wideTable(
			[]string{"2024-01-05", "90", "91", "89", "90.5", "800"},
		), "INFY.NS")))

	suite.provider.err = errors.New(errors.ErrCodeFetchFailed, "provider down")

	// Per-ticker failures are logged, never returned.
	suite.Require().NoError(updater.Run(context.Background(), "NSE", []string{"INFY.NS"}))
	suite.Equal(1, suite.provider.calls)

	got, _ := updater.Store().Read("NSE", "INFY.NS")
	suite.Require().Len(got, 1)
	suite.Equal(90.5, got[0].Close.Unwrap())
}

func (suite *UpdaterTestSuite) TestRunReadsTickerListFile() {
	suite.Require().NoError(os.WriteFile(
		filepath.Join(suite.cfg.TickerListDir, "NSE.txt"), []byte("INFY.NS\n"), 0o644))

	suite.provider.table = wideTable(
		[]string{"2024-01-08", "100", "101", "99", "100.5", "1000"},
	)

	updater := suite.newUpdater(true)
	suite.Require().NoError(updater.Run(context.Background(), "NSE", nil))
	suite.Equal(1, suite.provider.calls)
}

func (suite *UpdaterTestSuite) TestRunFailsWithoutTickerList() {
	updater := suite.newUpdater(true)

	err := updater.Run(context.Background(), "NSE", nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeTickerListMissing))
}
