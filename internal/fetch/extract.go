package fetch

import (
	"strconv"
	"strings"

	"github.com/moznion/go-optional"

	"github.com/apex-analytics/apexfeed/internal/csvrepair"
	"github.com/apex-analytics/apexfeed/internal/types"
)

// maxRescueColumnName bounds substring column matching; pathologically long
// names are junk, not flattened multi-level headers.
const maxRescueColumnName = 80

// ExtractCanonical pulls the canonical OHLCV columns out of a wide provider
// table. For each target the lookup chain is: exact name, then
// "Target_<ticker>", then the same with dots in the ticker replaced by
// underscores, then any column whose name contains the target
// (case-insensitive). Missing targets become null columns, never an error.
//
// The result is deduplicated by date (last wins), sorted ascending, and
// empty when the input holds no rows.
func ExtractCanonical(t *csvrepair.Table, ticker string) types.Series {
	if t.IsEmpty() {
		return types.Series{}
	}

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = csvrepair.FlattenColumnName(c)
	}

	work := &csvrepair.Table{Columns: cols, Rows: t.Rows}

	dateIdx := locateDateColumn(work)
	if dateIdx < 0 {
		return types.Series{}
	}

	colFor := make(map[string]int, 5)
	for _, target := range []string{"Open", "High", "Low", "Close", "Volume"} {
		colFor[target] = locateTargetColumn(work, target, ticker)
	}

	bars := make(types.Series, 0, len(work.Rows))

	for _, row := range work.Rows {
		d, ok := csvrepair.ParseDateLenient(work.Cell(row, dateIdx))
		if !ok {
			continue
		}

		bars = append(bars, types.Bar{
			Date:   d.Format(types.DateLayout),
			Open:   coerceProviderNumeric(work.Cell(row, colFor["Open"])),
			High:   coerceProviderNumeric(work.Cell(row, colFor["High"])),
			Low:    coerceProviderNumeric(work.Cell(row, colFor["Low"])),
			Close:  coerceProviderNumeric(work.Cell(row, colFor["Close"])),
			Volume: coerceProviderNumeric(work.Cell(row, colFor["Volume"])),
			Stock:  ticker,
		})
	}

	return bars.SortDedupe()
}

// locateDateColumn prefers an explicit Date/Datetime column, then falls back
// to the first column where the majority of non-empty cells parse as dates.
func locateDateColumn(t *csvrepair.Table) int {
	for _, name := range []string{"Date", "Datetime"} {
		if idx := t.ColumnIndex(name); idx >= 0 {
			return idx
		}
	}

	for i := range t.Columns {
		nonEmpty := 0
		parsed := 0

		for _, row := range t.Rows {
			cell := t.Cell(row, i)
			if cell == "" {
				continue
			}

			nonEmpty++

			if _, ok := csvrepair.ParseDateLenient(cell); ok {
				parsed++
			}
		}

		if nonEmpty > 0 && parsed*2 > nonEmpty {
			return i
		}
	}

	return -1
}

func locateTargetColumn(t *csvrepair.Table, target, ticker string) int {
	candidates := []string{
		target,
		target + "_" + ticker,
		target + "_" + strings.ReplaceAll(ticker, ".", "_"),
	}

	for _, name := range candidates {
		if idx := t.ColumnIndex(name); idx >= 0 {
			return idx
		}
	}

	lowTarget := strings.ToLower(target)

	for i, c := range t.Columns {
		if len(c) <= maxRescueColumnName && strings.Contains(strings.ToLower(c), lowTarget) {
			return i
		}
	}

	return -1
}

// coerceProviderNumeric parses a cell as a float, retrying once with
// thousands separators stripped ("1,234.5").
func coerceProviderNumeric(s string) optional.Option[float64] {
	if s == "" {
		return optional.None[float64]()
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return optional.Some(v)
	}

	stripped := strings.ReplaceAll(s, ",", "")
	if v, err := strconv.ParseFloat(stripped, 64); err == nil {
		return optional.Some(v)
	}

	return optional.None[float64]()
}
