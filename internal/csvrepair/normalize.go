package csvrepair

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/moznion/go-optional"

	"github.com/apex-analytics/apexfeed/internal/types"
)

// DefaultHeaderScanRows is how many leading rows are inspected for embedded
// header contamination.
const DefaultHeaderScanRows = 6

// DefaultHeaderMajorityDivisor sets the header-like vote threshold: a row is
// header-like when at least nonEmpty/divisor of its non-empty, non-date cells
// match a header pattern. The half-of-non-empty threshold is a tuned
// heuristic, not a derived constant, which is why it is overridable.
const DefaultHeaderMajorityDivisor = 2

// tupleColumnPattern matches stringified multi-level names such as
// "('Open','TICKER.NS')"; the first group is the usable part.
var tupleColumnPattern = regexp.MustCompile(`^\(?['"]?([^'",)]+)['"]?(?:,\s*['"]?([^'",)]+)['"]?)?\)?$`)

// Normalizer converts best-effort tables into the canonical schema.
// The zero value is not usable; construct with NewNormalizer.
type Normalizer struct {
	// HeaderScanRows is the number of leading rows checked by the
	// contamination guard.
	HeaderScanRows int
	// HeaderMajorityDivisor tunes the header-like majority vote.
	HeaderMajorityDivisor int
}

// NewNormalizer returns a Normalizer with the default heuristics.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		HeaderScanRows:        DefaultHeaderScanRows,
		HeaderMajorityDivisor: DefaultHeaderMajorityDivisor,
	}
}

// Normalize converts a best-effort table into a canonical series: flattened
// column names, embedded header rows dropped (date-gated), dates parsed and
// reformatted, expected columns located or null-filled, duplicates removed
// keeping the last occurrence, ascending order.
//
// Returns nil when the table is empty, no date column can be established, or
// every row fails date parsing.
func (n *Normalizer) Normalize(t *Table, tickerHint string) types.Series {
	if t.IsEmpty() {
		return nil
	}

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = FlattenColumnName(c)
	}

	work := &Table{Columns: cols, Rows: t.Rows}

	dateCandidates := dateCandidateIndexes(work)
	work.Rows = n.dropHeaderLikeRows(work, dateCandidates, tickerHint)

	dateIdx := DetectDateColumn(work)
	if dateIdx < 0 {
		return nil
	}

	parsed := parseDateColumn(work, dateIdx)
	if len(parsed) == 0 {
		return nil
	}

	colFor := locateExpectedColumns(work, dateIdx)

	bars := make(types.Series, 0, len(parsed))
	allStockEmpty := true

	// Rows are visited in table order so SortDedupe's keep-last resolves
	// duplicate dates in favour of the later row.
	for rowIdx := range work.Rows {
		date, ok := parsed[rowIdx]
		if !ok {
			continue
		}

		row := work.Rows[rowIdx]

		bar := types.Bar{
			Date:   date,
			Open:   coerceNumeric(work.Cell(row, colFor["Open"])),
			High:   coerceNumeric(work.Cell(row, colFor["High"])),
			Low:    coerceNumeric(work.Cell(row, colFor["Low"])),
			Close:  coerceNumeric(work.Cell(row, colFor["Close"])),
			Volume: coerceNumeric(work.Cell(row, colFor["Volume"])),
			Stock:  coerceStock(work.Cell(row, colFor["Stock"])),
		}

		if bar.Stock != "" {
			allStockEmpty = false
		}

		bars = append(bars, bar)
	}

	if allStockEmpty && tickerHint != "" {
		for i := range bars {
			bars[i].Stock = tickerHint
		}
	}

	return bars.SortDedupe()
}

// FlattenColumnName joins the non-empty parts of a composite column name with
// underscores and unwraps stringified tuples like "('Open','X.NS')".
func FlattenColumnName(col string) string {
	s := strings.TrimSpace(col)

	if m := tupleColumnPattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}

	return s
}

// dateCandidateIndexes returns the columns eligible to carry dates: every
// column whose name contains "date", else the first column.
func dateCandidateIndexes(t *Table) []int {
	var candidates []int

	for i, c := range t.Columns {
		if strings.Contains(strings.ToLower(c), "date") {
			candidates = append(candidates, i)
		}
	}

	if len(candidates) == 0 && len(t.Columns) > 0 {
		candidates = []int{0}
	}

	return candidates
}

// rowHasValidDate reports whether any date-candidate cell of the row parses
// as a date, falling back to the first cell.
func rowHasValidDate(t *Table, row []string, dateCandidates []int) bool {
	for _, idx := range dateCandidates {
		if _, ok := ParseDateLenient(t.Cell(row, idx)); ok {
			return true
		}
	}

	_, ok := ParseDateLenient(t.Cell(row, 0))

	return ok
}

// dropHeaderLikeRows removes spurious embedded header rows near the top of
// the table. A row with a valid date in any candidate cell is real data and
// is never dropped, regardless of how header-like its other cells look; that
// gate protects legitimate early historical rows from deletion.
func (n *Normalizer) dropHeaderLikeRows(t *Table, dateCandidates []int, tickerHint string) [][]string {
	drop := make(map[int]bool)

	scan := n.HeaderScanRows
	if scan > len(t.Rows) {
		scan = len(t.Rows)
	}

	candidate := make(map[int]bool, len(dateCandidates))
	for _, idx := range dateCandidates {
		candidate[idx] = true
	}

	for rowIdx := 0; rowIdx < scan; rowIdx++ {
		row := t.Rows[rowIdx]

		if rowHasValidDate(t, row, dateCandidates) {
			continue
		}

		nonEmpty := 0
		matches := 0

		for colIdx, colName := range t.Columns {
			if candidate[colIdx] {
				continue
			}

			cell := t.Cell(row, colIdx)
			if cell == "" {
				continue
			}

			nonEmpty++

			if cell == colName ||
				(tickerHint != "" && strings.Contains(cell, tickerHint)) ||
				looksLikeSymbolToken(cell) {
				matches++
			}
		}

		threshold := nonEmpty / n.HeaderMajorityDivisor
		if threshold < 1 {
			threshold = 1
		}

		if nonEmpty > 0 && matches >= threshold {
			drop[rowIdx] = true
		}
	}

	if len(drop) == 0 {
		return t.Rows
	}

	kept := make([][]string, 0, len(t.Rows)-len(drop))

	for i, row := range t.Rows {
		if !drop[i] {
			kept = append(kept, row)
		}
	}

	return kept
}

// looksLikeSymbolToken reports whether a cell resembles an uppercase ticker
// or symbol token (e.g. "INFY.NS", "RELIANCE").
func looksLikeSymbolToken(s string) bool {
	if len(s) <= 1 || s != strings.ToUpper(s) {
		return false
	}

	for _, r := range s {
		if !isAlnum(r) && r != '.' && r != '-' {
			return false
		}
	}

	return true
}

func isAlnum(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

// parseDateColumn parses the date column strictly first; if that yields zero
// valid dates across the whole column, the original values are re-parsed with
// the lenient general parser. Rows whose date still fails are dropped. The
// result maps row index to the formatted date.
func parseDateColumn(t *Table, dateIdx int) map[int]string {
	parsed := make(map[int]string, len(t.Rows))

	for i, row := range t.Rows {
		if d, ok := ParseDateStrict(t.Cell(row, dateIdx)); ok {
			parsed[i] = d.Format(types.DateLayout)
		}
	}

	if len(parsed) == 0 {
		for i, row := range t.Rows {
			if d, ok := ParseDateLenient(t.Cell(row, dateIdx)); ok {
				parsed[i] = d.Format(types.DateLayout)
			}
		}
	}

	return parsed
}

// locateExpectedColumns maps each expected column name to its index in the
// table: exact name first, then the first unclaimed column containing the
// name (case-insensitive). A column claimed by one target is out of the pool
// for later targets, and the date column is claimed up front. Missing columns
// map to -1 and surface as null fields.
func locateExpectedColumns(t *Table, dateIdx int) map[string]int {
	colFor := make(map[string]int, 6)
	claimed := make(map[int]bool, 7)

	if dateIdx >= 0 {
		claimed[dateIdx] = true
	}

	for _, target := range []string{"Open", "High", "Low", "Close", "Volume", "Stock"} {
		idx := t.ColumnIndex(target)
		if idx >= 0 && claimed[idx] {
			idx = -1
		}

		if idx < 0 {
			lowTarget := strings.ToLower(target)

			for i, c := range t.Columns {
				if !claimed[i] && strings.Contains(strings.ToLower(c), lowTarget) {
					idx = i

					break
				}
			}
		}

		if idx >= 0 {
			claimed[idx] = true
		}

		colFor[target] = idx
	}

	return colFor
}

// coerceNumeric converts a cell to a float, returning None for anything that
// does not parse.
func coerceNumeric(s string) optional.Option[float64] {
	if s == "" {
		return optional.None[float64]()
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return optional.None[float64]()
	}

	return optional.Some(v)
}

func coerceStock(s string) string {
	if strings.EqualFold(s, "nan") {
		return ""
	}

	return s
}
