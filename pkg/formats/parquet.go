package formats

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
)

// WriteParquet writes the table as a snappy-compressed Parquet file
// with string-typed columns. Used when rotating historical CSVs into
// the processed prefix.
func WriteParquet(w io.Writer, t *Table) error {
	pool := memory.NewGoAllocator()

	fields := make([]arrow.Field, len(t.Columns))
	for i, name := range t.Columns {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(pool))

	fw, err := pqarrow.NewFileWriter(schema, w, props, arrowProps)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "create parquet writer")
	}

	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	for _, row := range t.Rows {
		for col := range t.Columns {
			builder.Field(col).(*array.StringBuilder).Append(row[col])
		}
	}

	rec := builder.NewRecord()
	defer rec.Release()

	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return errors.Wrap(err, errors.ErrorTypeData, "write parquet record batch")
	}
	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "close parquet writer")
	}
	return nil
}
