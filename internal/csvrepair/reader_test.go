package csvrepair

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ReaderTestSuite struct {
	suite.Suite

	dir string
}

func TestReaderSuite(t *testing.T) {
	suite.Run(t, new(ReaderTestSuite))
}

func (suite *ReaderTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
}

func (suite *ReaderTestSuite) write(name string, data []byte) string {
	path := filepath.Join(suite.dir, name)
	suite.Require().NoError(os.WriteFile(path, data, 0o644))

	return path
}

func (suite *ReaderTestSuite) TestReadsPlainCanonicalFile() {
	path := suite.write("plain.csv", []byte(
		"Date,Open,High,Low,Close,Volume,Stock\n"+
			"2024-01-02,100,105,99,103,12000,INFY.NS\n"+
			"2024-01-03,103,108,101,107,9000,INFY.NS\n"))

	table, diag := ReadFlexible(path)
	suite.Require().NotNil(table)
	suite.Equal([]string{"Date", "Open", "High", "Low", "Close", "Volume", "Stock"}, table.Columns)
	suite.Len(table.Rows, 2)
	suite.Equal(',', diag.DetectedDelimiter)
	suite.Equal("utf-8-sig", diag.SampleEncoding)
}

func (suite *ReaderTestSuite) TestReadsUTF8BOM() {
	path := suite.write("bom.csv", append([]byte{0xEF, 0xBB, 0xBF}, []byte(
		"Date,Close\n2024-01-02,100\n")...))

	table, _ := ReadFlexible(path)
	suite.Require().NotNil(table)
	suite.Equal("Date", table.Columns[0])
}

func (suite *ReaderTestSuite) TestReadsLatin1Bytes() {
	// 0xE9 is not valid UTF-8 on its own; only the Latin-1 attempt decodes it.
	data := []byte("Date,Close,Note\n2024-01-02,100,caf\xe9\n")
	path := suite.write("latin1.csv", data)

	table, diag := ReadFlexible(path)
	suite.Require().NotNil(table)
	suite.Len(table.Rows, 1)
	suite.Contains(diag.Attempts[len(diag.Attempts)-1], "latin-1")
}

func (suite *ReaderTestSuite) TestDetectsSemicolonDelimiter() {
	path := suite.write("semi.csv", []byte(
		"Date;Open;Close\n2024-01-02;100;103\n2024-01-03;103;107\n"))

	table, diag := ReadFlexible(path)
	suite.Require().NotNil(table)
	suite.Equal(';', diag.DetectedDelimiter)
	suite.Equal([]string{"Date", "Open", "Close"}, table.Columns)
}

func (suite *ReaderTestSuite) TestDetectsTabDelimiter() {
	path := suite.write("tab.csv", []byte(
		"Date\tClose\n2024-01-02\t100\n2024-01-03\t103\n"))

	_, diag := ReadFlexible(path)
	suite.Equal('\t', diag.DetectedDelimiter)
}

func (suite *ReaderTestSuite) TestRaggedRowsFallToLenientEngine() {
	path := suite.write("ragged.csv", []byte(
		"Date,Open,Close\n"+
			"2024-01-02,100,103\n"+
			"2024-01-03,103\n"+ // short row
			"2024-01-04,104,108,extra\n")) // long row

	table, diag := ReadFlexible(path)
	suite.Require().NotNil(table)
	suite.Len(table.Rows, 3)

	// short rows are padded, long rows truncated to the header width
	suite.Equal("", table.Rows[1][2])
	suite.Len(table.Rows[2], 3)
	suite.Contains(diag.Attempts[len(diag.Attempts)-1], "engine=lenient")
}

func (suite *ReaderTestSuite) TestMissingFile() {
	table, diag := ReadFlexible(filepath.Join(suite.dir, "nope.csv"))
	suite.Nil(table)
	suite.Equal([]string{"file-not-found"}, diag.Attempts)
}

func (suite *ReaderTestSuite) TestEmptyFileIsUnreadable() {
	path := suite.write("empty.csv", nil)

	table, diag := ReadFlexible(path)
	suite.Nil(table)
	suite.Contains(diag.Attempts[len(diag.Attempts)-1], "tail-scan-fallback")
	suite.Empty(diag.TailFoundDate)
}

func (suite *ReaderTestSuite) TestHeaderNamesTrimmed() {
	path := suite.write("spaces.csv", []byte(
		" Date , Open ,Close\n2024-01-02,1,2\n"))

	table, _ := ReadFlexible(path)
	suite.Require().NotNil(table)
	suite.Equal([]string{"Date", "Open", "Close"}, table.Columns)
}

func TestTailScanFindsDateToken(t *testing.T) {
	garbage := append([]byte{0x00, 0x01, 0xFE}, []byte(
		"\nnoise,noise\nmore garbage,2021-07-15,trailing\n")...)

	found := tailScan(garbage, ',')
	require.Equal(t, "2021-07-15", found)
}

func TestTailScanNoDate(t *testing.T) {
	require.Empty(t, tailScan([]byte("only,words,here\nno dates at all\n"), ','))
}

func TestDetectDateColumn(t *testing.T) {
	t.Run("named date column", func(t *testing.T) {
		table := &Table{Columns: []string{"Close", "Trade Date"}, Rows: [][]string{{"1", "2024-01-02"}}}
		require.Equal(t, 1, DetectDateColumn(table))
	})

	t.Run("first column fallback", func(t *testing.T) {
		table := &Table{Columns: []string{"when", "Close"}, Rows: [][]string{{"2024-01-02", "1"}}}
		require.Equal(t, 0, DetectDateColumn(table))
	})

	t.Run("no dates anywhere", func(t *testing.T) {
		table := &Table{Columns: []string{"a", "b"}, Rows: [][]string{{"x", "y"}}}
		require.Equal(t, -1, DetectDateColumn(table))
	})
}

