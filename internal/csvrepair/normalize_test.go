package csvrepair

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type NormalizeTestSuite struct {
	suite.Suite
	normalizer *Normalizer
}

func TestNormalizeSuite(t *testing.T) {
	suite.Run(t, new(NormalizeTestSuite))
}

func (suite *NormalizeTestSuite) SetupTest() {
	suite.normalizer = NewNormalizer()
}

func (suite *NormalizeTestSuite) TestCanonicalPassThrough() {
	table := &Table{
		Columns: []string{"Date", "Open", "High", "Low", "Close", "Volume", "Stock"},
		Rows: [][]string{
			{"2024-01-02", "100.5", "101.0", "99.5", "100.0", "1000", "INFY.NS"},
			{"2024-01-03", "100.0", "102.0", "99.0", "101.5", "1500", "INFY.NS"},
		},
	}

	bars := suite.normalizer.Normalize(table, "INFY.NS")
	suite.Require().Len(bars, 2)
	suite.Equal("2024-01-02", bars[0].Date)
	suite.Equal(100.5, bars[0].Open.Unwrap())
	suite.Equal(101.5, bars[1].Close.Unwrap())
	suite.Equal("INFY.NS", bars[0].Stock)
}

func (suite *NormalizeTestSuite) TestEmbeddedHeaderRowDropped() {
	table := &Table{
		Columns: []string{"Date", "Open", "High", "Low", "Close", "Volume", "Stock"},
		Rows: [][]string{
			{"Date", "Open", "High", "Low", "Close", "Volume", "Stock"},
			{"2024-01-02", "100", "101", "99", "100.5", "1000", "INFY.NS"},
		},
	}

	bars := suite.normalizer.Normalize(table, "INFY.NS")
	suite.Require().Len(bars, 1)
	suite.Equal("2024-01-02", bars[0].Date)
}

func (suite *NormalizeTestSuite) TestTickerRowDropped() {
	// A contamination row carrying the ticker in every cell but no date.
	table := &Table{
		Columns: []string{"Date", "Open", "High", "Low", "Close"},
		Rows: [][]string{
			{"", "INFY.NS", "INFY.NS", "INFY.NS", "INFY.NS"},
			{"2024-01-02", "100", "101", "99", "100.5"},
		},
	}

	bars := suite.normalizer.Normalize(table, "INFY.NS")
	suite.Require().Len(bars, 1)
	suite.Equal("2024-01-02", bars[0].Date)
}

func (suite *NormalizeTestSuite) TestDatedRowNeverDropped() {
	// Every non-date cell is an uppercase symbol-like token, which would
	// normally trip the header vote. The valid date must protect the row.
	table := &Table{
		Columns: []string{"Date", "Open", "High", "Low", "Close"},
		Rows: [][]string{
			{"2020-01-01", "AAA", "BBB", "CCC", "DDD"},
			{"2024-01-02", "100", "101", "99", "100.5"},
		},
	}

	bars := suite.normalizer.Normalize(table, "")
	suite.Require().Len(bars, 2)
	suite.Equal("2020-01-01", bars[0].Date)
	suite.True(bars[0].Open.IsNone())
	suite.Equal(100.0, bars[1].Open.Unwrap())
}

func (suite *NormalizeTestSuite) TestGarbledHeaderKeepsSeedRow() {
	// Regression: a file whose header got mangled must still retain its
	// single seed row so the incremental start date stays anchored.
	table := &Table{
		Columns: []string{"('Date','')", "('Open','INFY.NS')", "('Close','INFY.NS')"},
		Rows: [][]string{
			{"2020-01-01", "100", "101"},
		},
	}

	bars := suite.normalizer.Normalize(table, "INFY.NS")
	suite.Require().Len(bars, 1)
	suite.Equal("2020-01-01", bars[0].Date)
	suite.Equal(100.0, bars[0].Open.Unwrap())
	suite.Equal(101.0, bars[0].Close.Unwrap())
}

func (suite *NormalizeTestSuite) TestTupleColumnFlattening() {
	suite.Equal("Open", FlattenColumnName("('Open', 'INFY.NS')"))
	suite.Equal("Close", FlattenColumnName(`("Close", "RELIANCE.NS")`))
	suite.Equal("Date", FlattenColumnName("('Date', '')"))
	suite.Equal("Volume", FlattenColumnName("Volume"))
}

func (suite *NormalizeTestSuite) TestSubstringColumnRescue() {
	table := &Table{
		Columns: []string{"Date", "Open_INFY.NS", "High_INFY.NS", "Low_INFY.NS", "Close_INFY.NS"},
		Rows: [][]string{
			{"2024-01-02", "100", "101", "99", "100.5"},
		},
	}

	bars := suite.normalizer.Normalize(table, "INFY.NS")
	suite.Require().Len(bars, 1)
	suite.Equal(100.0, bars[0].Open.Unwrap())
	suite.Equal(101.0, bars[0].High.Unwrap())
	suite.Equal(99.0, bars[0].Low.Unwrap())
	suite.Equal(100.5, bars[0].Close.Unwrap())
	suite.True(bars[0].Volume.IsNone())
}

func (suite *NormalizeTestSuite) TestMissingColumnsAreNull() {
	table := &Table{
		Columns: []string{"Date", "Close"},
		Rows: [][]string{
			{"2024-01-02", "100.5"},
		},
	}

	bars := suite.normalizer.Normalize(table, "")
	suite.Require().Len(bars, 1)
	suite.True(bars[0].Open.IsNone())
	suite.True(bars[0].High.IsNone())
	suite.True(bars[0].Volume.IsNone())
	suite.Equal(100.5, bars[0].Close.Unwrap())
}

func (suite *NormalizeTestSuite) TestTickerHintFillsEmptyStock() {
	table := &Table{
		Columns: []string{"Date", "Close", "Stock"},
		Rows: [][]string{
			{"2024-01-02", "100.5", ""},
			{"2024-01-03", "101.0", "nan"},
		},
	}

	bars := suite.normalizer.Normalize(table, "TCS.NS")
	suite.Require().Len(bars, 2)
	suite.Equal("TCS.NS", bars[0].Stock)
	suite.Equal("TCS.NS", bars[1].Stock)
}

func (suite *NormalizeTestSuite) TestExplicitStockNotOverwritten() {
	table := &Table{
		Columns: []string{"Date", "Close", "Stock"},
		Rows: [][]string{
			{"2024-01-02", "100.5", "INFY.NS"},
			{"2024-01-03", "101.0", ""},
		},
	}

	bars := suite.normalizer.Normalize(table, "TCS.NS")
	suite.Require().Len(bars, 2)
	suite.Equal("INFY.NS", bars[0].Stock)
	suite.Equal("", bars[1].Stock)
}

func (suite *NormalizeTestSuite) TestDedupeKeepsLastAndSorts() {
	table := &Table{
		Columns: []string{"Date", "Close"},
		Rows: [][]string{
			{"2024-01-03", "200"},
			{"2024-01-02", "100"},
			{"2024-01-02", "150"},
		},
	}

	bars := suite.normalizer.Normalize(table, "")
	suite.Require().Len(bars, 2)
	suite.Equal("2024-01-02", bars[0].Date)
	suite.Equal(150.0, bars[0].Close.Unwrap())
	suite.Equal("2024-01-03", bars[1].Date)
}

func (suite *NormalizeTestSuite) TestDuplicateDateResolutionStable() {
	// Keep-last must follow table row order on every run, not the luck of
	// an iteration order.
	table := &Table{
		Columns: []string{"Date", "Close"},
		Rows: [][]string{
			{"2024-01-02", "100"},
			{"2024-01-02", "150"},
		},
	}

	for i := 0; i < 200; i++ {
		bars := suite.normalizer.Normalize(table, "")
		suite.Require().Len(bars, 1)
		suite.Equal(150.0, bars[0].Close.Unwrap())
	}
}

func (suite *NormalizeTestSuite) TestDateColumnMatchedByContainment() {
	table := &Table{
		Columns: []string{"Symbol", "Trade Date", "Close"},
		Rows: [][]string{
			{"INFY.NS", "2024-01-02", "100"},
			{"INFY.NS", "2024-01-03", "101"},
		},
	}

	bars := suite.normalizer.Normalize(table, "")
	suite.Require().Len(bars, 2)
	suite.Equal("2024-01-02", bars[0].Date)
	suite.Equal(100.0, bars[0].Close.Unwrap())
	suite.Equal("2024-01-03", bars[1].Date)
	suite.Equal(101.0, bars[1].Close.Unwrap())
}

func (suite *NormalizeTestSuite) TestHeaderVoteIgnoresDateCandidateCells() {
	// An unparseable cell in a date-candidate column must not count toward
	// the header-like majority.
	table := &Table{
		Columns: []string{"Trade Date", "Name", "Close"},
		Rows: [][]string{
			{"DATE-X", "alpha co", "12b3"},
		},
	}

	kept := suite.normalizer.dropHeaderLikeRows(table, dateCandidateIndexes(table), "")
	suite.Len(kept, 1)
}

func (suite *NormalizeTestSuite) TestLenientDateRetry() {
	// No cell parses strictly, so the whole column is re-read leniently.
	table := &Table{
		Columns: []string{"Date", "Close"},
		Rows: [][]string{
			{"2024/01/02", "100"},
			{"2024/01/03", "101"},
		},
	}

	bars := suite.normalizer.Normalize(table, "")
	suite.Require().Len(bars, 2)
	suite.Equal("2024-01-02", bars[0].Date)
	suite.Equal("2024-01-03", bars[1].Date)
}

func (suite *NormalizeTestSuite) TestStrictDatesSuppressLenientRetry() {
	// One strict hit means the lenient pass never runs; the odd row drops.
	table := &Table{
		Columns: []string{"Date", "Close"},
		Rows: [][]string{
			{"2024-01-02", "100"},
			{"02-Jan-2024", "999"},
		},
	}

	bars := suite.normalizer.Normalize(table, "")
	suite.Require().Len(bars, 1)
	suite.Equal("2024-01-02", bars[0].Date)
}

func (suite *NormalizeTestSuite) TestFirstColumnAssumedDate() {
	table := &Table{
		Columns: []string{"timestamp", "Close"},
		Rows: [][]string{
			{"2024-01-02", "100"},
		},
	}

	bars := suite.normalizer.Normalize(table, "")
	suite.Require().Len(bars, 1)
	suite.Equal("2024-01-02", bars[0].Date)
}

func (suite *NormalizeTestSuite) TestEmptyAndHopelessTables() {
	suite.Nil(suite.normalizer.Normalize(nil, ""))
	suite.Nil(suite.normalizer.Normalize(&Table{}, ""))

	noDates := &Table{
		Columns: []string{"Date", "Close"},
		Rows: [][]string{
			{"not a date", "100"},
		},
	}
	suite.Nil(suite.normalizer.Normalize(noDates, ""))
}
