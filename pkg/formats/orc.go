package formats

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/scritchley/orc"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
)

const orcMagic = "ORC"

// IsORC reports whether data starts with the ORC file magic.
func IsORC(data []byte) bool {
	return len(data) >= len(orcMagic) && string(data[:len(orcMagic)]) == orcMagic
}

// ReadORC decodes an ORC artifact into a table. Cell values are
// rendered as strings regardless of the file's column types.
func ReadORC(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "read orc artifact")
	}
	if !IsORC(data) {
		return nil, errors.New(errors.ErrorTypeFormat, "not an orc artifact")
	}

	reader, err := orc.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "open orc artifact")
	}

	columns := reader.Schema().Columns()
	t := NewTable(columns...)

	c := reader.Select(columns...)
	for c.Stripes() {
		for c.Next() {
			cells := c.Row()
			row := make([]string, len(columns))
			for i := range row {
				if i < len(cells) {
					row[i] = orcCellString(cells[i])
				}
			}
			t.Rows = append(t.Rows, row)
		}
	}
	if err := c.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "scan orc artifact")
	}
	return t, nil
}

// WriteORC encodes a table as an ORC file with string-typed columns.
func WriteORC(w io.Writer, t *Table) error {
	fields := make([]string, len(t.Columns))
	for i, name := range t.Columns {
		fields[i] = name + ":string"
	}
	schema, err := orc.ParseSchema("struct<" + strings.Join(fields, ",") + ">")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "build orc schema")
	}

	ow, err := orc.NewWriter(w, orc.SetSchema(schema))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "open orc writer")
	}
	for _, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = v
		}
		if err := ow.Write(cells...); err != nil {
			_ = ow.Close()
			return errors.Wrap(err, errors.ErrorTypeData, "write orc row")
		}
	}
	if err := ow.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "close orc stream")
	}
	return nil
}

func orcCellString(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case []byte:
		return string(c)
	case time.Time:
		return c.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(c)
	}
}
