// Package report reads and writes the CSV datasets of the mining pipelines
// and renders the Markdown report and charts built from them.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Table is a CSV file held in memory with its header.
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

// NewTable returns a table with the given header and rows.
func NewTable(header []string, rows [][]string) *Table {
	t := &Table{Header: header, Rows: rows}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
}

// ReadTable reads the CSV file at path. The first record is the header.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	t, err := DecodeTable(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return t, nil
}

// DecodeTable reads a CSV document from r.
func DecodeTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return NewTable(nil, nil), nil
	}
	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return NewTable(header, records[1:]), nil
}

// Has reports whether the table has the named column.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Value returns the cell of row i in the named column, or "" when either
// is missing.
func (t *Table) Value(i int, name string) string {
	col, ok := t.index[name]
	if !ok || i < 0 || i >= len(t.Rows) || col >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][col]
}

// Strings returns the named column. ok is false when it does not exist.
func (t *Table) Strings(name string) (values []string, ok bool) {
	if !t.Has(name) {
		return nil, false
	}
	values = make([]string, len(t.Rows))
	for i := range t.Rows {
		values[i] = t.Value(i, name)
	}
	return values, true
}

// Floats returns the named column parsed as numbers. Empty or unparsable
// cells are NaN. ok is false when the column does not exist.
func (t *Table) Floats(name string) (values []float64, ok bool) {
	cells, ok := t.Strings(name)
	if !ok {
		return nil, false
	}
	values = make([]float64, len(cells))
	for i, c := range cells {
		values[i] = ParseFloat(c)
	}
	return values, true
}

// ParseFloat parses s, returning NaN for empty or invalid input.
func ParseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// LeftJoin returns a table holding every row of t extended with the
// columns of right whose key matches. The key column of right is not
// repeated. Rows without a match get empty cells. The first matching row
// of right wins.
func (t *Table) LeftJoin(right *Table, key, rightKey string) *Table {
	var extra []int
	for i, h := range right.Header {
		if h == rightKey || t.Has(h) {
			continue
		}
		extra = append(extra, i)
	}
	header := append(append([]string{}, t.Header...), pick(right.Header, extra)...)

	lookup := make(map[string]int, len(right.Rows))
	for i := range right.Rows {
		k := right.Value(i, rightKey)
		if _, seen := lookup[k]; !seen {
			lookup[k] = i
		}
	}

	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		joined := append(make([]string, 0, len(header)), row...)
		for len(joined) < len(t.Header) {
			joined = append(joined, "")
		}
		if j, ok := lookup[t.Value(i, key)]; ok {
			joined = append(joined, pick(right.Rows[j], extra)...)
		} else {
			joined = append(joined, make([]string, len(extra))...)
		}
		rows[i] = joined
	}
	return NewTable(header, rows)
}

func pick(row []string, cols []int) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		if c < len(row) {
			out[i] = row[c]
		}
	}
	return out
}

// Write writes the table to path, creating parent directories.
func (t *Table) Write(path string) error {
	return WriteCSV(path, t.Header, t.Rows)
}

// Recorder is a value with a fixed CSV representation.
type Recorder interface {
	Record() []string
}

// WriteRecords writes header and one row per item to path.
func WriteRecords[T Recorder](path string, header []string, items []T) error {
	rows := make([][]string, len(items))
	for i, item := range items {
		rows[i] = item.Record()
	}
	return WriteCSV(path, header, rows)
}

// WriteCSV writes header and rows to path, creating parent directories.
// Rows are written under a temporary name and renamed into place.
func WriteCSV(path string, header []string, rows [][]string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header to %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write rows to %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
