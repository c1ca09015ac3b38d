// Package csvrepair reads and normalizes inconsistently formatted historical
// CSV files into the canonical 7-column schema. Reading is tolerant of
// unknown encodings, delimiters and embedded header rows; normalization is
// conservative and never discards a row that carries a parseable date.
package csvrepair

import "strings"

// Table is a best-effort tabular structure: header names taken verbatim from
// the file plus string cells. Column identity may still be ambiguous (e.g. a
// flattened multi-level name like "Open_TICKER.NS"); normalization resolves
// that downstream.
type Table struct {
	Columns []string
	Rows    [][]string
}

// IsEmpty reports whether the table holds no data rows.
func (t *Table) IsEmpty() bool {
	return t == nil || len(t.Rows) == 0
}

// ColumnIndex returns the position of the column with the exact given name,
// or -1 when absent.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}

	return -1
}

// Cell returns the trimmed value of the given row at the given column index,
// or "" when the index is out of range.
func (t *Table) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[col])
}
