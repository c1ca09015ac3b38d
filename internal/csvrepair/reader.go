package csvrepair

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/apex-analytics/apexfeed/internal/types"
)

const (
	// sniffSampleLines bounds how much of the file feeds delimiter detection.
	sniffSampleLines = 120
	// tailScanBytes is how far back the salvage scan looks on total failure.
	tailScanBytes = 8192
	// previewLines is how many raw lines the diagnostics retain.
	previewLines = 8
)

// encodingNames are tried in fixed preference order.
var encodingNames = []string{"utf-8-sig", "utf-8", "latin-1"}

// delimiterCandidates is the sniffing candidate set; comma wins on ambiguity.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

type engine string

const (
	engineStrict  engine = "strict"
	engineLenient engine = "lenient"
)

// Diagnostics records every attempt the tolerant reader made, so an
// unreadable file can be reported without raising.
type Diagnostics struct {
	FilePath          string
	Attempts          []string
	SampleEncoding    string
	SamplePreview     []string
	DetectedDelimiter rune
	// TailFoundDate is set when normal parsing failed entirely but a
	// date-like token was found near the end of the file. It signals that the
	// file might contain salvageable data; it never yields usable rows.
	TailFoundDate string
}

// ReadFlexible reads a CSV file of unknown encoding, delimiter and header
// integrity. It returns a best-effort table, or nil with diagnostics when
// every encoding+engine combination failed. It never panics or returns an
// error: unreadable is a result, not a failure.
func ReadFlexible(path string) (*Table, Diagnostics) {
	diag := Diagnostics{FilePath: path, DetectedDelimiter: ','}

	raw, err := os.ReadFile(path)
	if err != nil {
		diag.Attempts = append(diag.Attempts, "file-not-found")

		return nil, diag
	}

	// Sample lines from the first decodable encoding drive delimiter
	// detection and the diagnostic preview.
	for _, enc := range encodingNames {
		if text, ok := decode(raw, enc); ok {
			lines := headLines(text, sniffSampleLines)
			diag.SampleEncoding = enc
			diag.SamplePreview = headLines(text, previewLines)
			diag.DetectedDelimiter = detectDelimiter(lines)

			break
		}
	}

	for _, eng := range []engine{engineStrict, engineLenient} {
		for _, enc := range encodingNames {
			text, ok := decode(raw, enc)
			if !ok {
				diag.Attempts = append(diag.Attempts,
					fmt.Sprintf("failed encoding=%s engine=%s err=undecodable", enc, eng))

				continue
			}

			table, err := parseCSV(text, diag.DetectedDelimiter, eng)
			if err != nil {
				diag.Attempts = append(diag.Attempts,
					fmt.Sprintf("failed encoding=%s engine=%s err=%v", enc, eng, err))

				continue
			}

			diag.Attempts = append(diag.Attempts,
				fmt.Sprintf("read-success encoding=%s engine=%s rows=%d cols=%d",
					enc, eng, len(table.Rows), len(table.Columns)))

			return table, diag
		}
	}

	// Nothing parsed. Scan the file tail for any date-like token so the
	// caller can report whether data might be salvageable.
	diag.Attempts = append(diag.Attempts, "tail-scan-fallback")
	diag.TailFoundDate = tailScan(raw, diag.DetectedDelimiter)

	return nil, diag
}

// DetectDateColumn finds the column to treat as the date axis: the first
// column whose name contains "date" (case-insensitive), else the first column
// when any of its values parse as dates, else -1.
func DetectDateColumn(t *Table) int {
	if t == nil {
		return -1
	}

	for i, c := range t.Columns {
		if strings.Contains(strings.ToLower(c), "date") {
			return i
		}
	}

	if len(t.Columns) == 0 {
		return -1
	}

	for _, row := range t.Rows {
		if _, ok := ParseDateLenient(t.Cell(row, 0)); ok {
			return 0
		}
	}

	return -1
}

func decode(raw []byte, enc string) (string, bool) {
	switch enc {
	case "utf-8-sig":
		trimmed := bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
		if !utf8.Valid(trimmed) {
			return "", false
		}

		return string(trimmed), true
	case "utf-8":
		if !utf8.Valid(raw) {
			return "", false
		}

		return string(raw), true
	case "latin-1":
		// Latin-1 maps every byte to the code point of the same value, so
		// decoding cannot fail. It is deliberately last in preference order.
		runes := make([]rune, len(raw))
		for i, b := range raw {
			runes[i] = rune(b)
		}

		return string(runes), true
	default:
		return "", false
	}
}

func headLines(text string, n int) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, strings.TrimRight(l, "\r"))
	}

	return out
}

// detectDelimiter scores each candidate by how many sample lines split into a
// consistent field count greater than one. Comma wins ties and ambiguity.
func detectDelimiter(lines []string) rune {
	bestDelim := ','
	bestScore := 0

	for _, delim := range delimiterCandidates {
		counts := make(map[int]int)

		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}

			fields, err := splitLine(line, delim)
			if err != nil {
				continue
			}

			if len(fields) > 1 {
				counts[len(fields)]++
			}
		}

		score := 0
		for _, n := range counts {
			if n > score {
				score = n
			}
		}

		if score > bestScore {
			bestScore = score
			bestDelim = delim
		}
	}

	return bestDelim
}

func splitLine(line string, delim rune) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.LazyQuotes = true

	return r.Read()
}

func parseCSV(text string, delim rune, eng engine) (*Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim

	if eng == engineLenient {
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no records")
	}

	header := make([]string, len(records[0]))
	for i, c := range records[0] {
		header[i] = strings.TrimSpace(c)
	}

	rows := make([][]string, 0, len(records)-1)

	for _, rec := range records[1:] {
		row := make([]string, len(header))

		for i := range header {
			if i < len(rec) {
				row[i] = rec[i]
			}
		}

		rows = append(rows, row)
	}

	return &Table{Columns: header, Rows: rows}, nil
}

// tailScan looks for any date-parseable token in the last tailScanBytes of
// the raw file, scanning lines back to front.
func tailScan(raw []byte, delim rune) string {
	if len(raw) > tailScanBytes {
		raw = raw[len(raw)-tailScanBytes:]
	}

	text, _ := decode(raw, "latin-1")
	lines := strings.Split(text, "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		cells, err := splitLine(line, delim)
		if err != nil {
			cells = []string{line}
		}

		for _, cell := range cells {
			if t, ok := ParseDateLenient(cell); ok {
				return t.Format(types.DateLayout)
			}
		}
	}

	return ""
}
