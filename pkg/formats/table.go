// Package formats implements the artifact codecs the pipeline
// dispatches between: gzip-wrapped JSON, a compact columnar format,
// CSV and Parquet. All of them read into or write out of the Table
// model.
package formats

import (
	"encoding/csv"
	"io"
	"sort"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
)

// Table is an ordered set of named string columns with row data.
// Report payloads are normalized into it before upload.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable creates a table with the given column order and no rows.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// AppendRow adds a row. The row length must match the column count.
func (t *Table) AppendRow(row []string) error {
	if len(row) != len(t.Columns) {
		return errors.New(errors.ErrorTypeData, "row length does not match column count").
			WithDetail("columns", len(t.Columns)).
			WithDetail("row", len(row))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// ColumnIndex returns the position of a column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// AddConstColumn appends a column holding the same value in every row.
func (t *Table) AddConstColumn(name, value string) {
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], value)
	}
}

// SortColumns reorders columns lexicographically, moving cell data
// with them.
func (t *Table) SortColumns() {
	perm := make([]int, len(t.Columns))
	for i := range perm {
		perm[i] = i
	}
	sort.Slice(perm, func(a, b int) bool {
		return t.Columns[perm[a]] < t.Columns[perm[b]]
	})

	newCols := make([]string, len(t.Columns))
	for i, p := range perm {
		newCols[i] = t.Columns[p]
	}
	t.Columns = newCols

	for r, row := range t.Rows {
		newRow := make([]string, len(row))
		for i, p := range perm {
			newRow[i] = row[p]
		}
		t.Rows[r] = newRow
	}
}

// WriteCSV writes the table as CSV with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "write csv header")
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "write csv row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "flush csv")
	}
	return nil
}

// ReadCSV parses CSV with a header row into a table.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "read csv")
	}
	if len(records) == 0 {
		return nil, errors.New(errors.ErrorTypeData, "csv has no header row")
	}
	t := NewTable(records[0]...)
	for _, row := range records[1:] {
		if err := t.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}
