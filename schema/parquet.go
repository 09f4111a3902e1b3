package schema

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/turbot/edgar-log-pipeline/filepaths"
)

// WriteParquet writes rows to a gzip compressed parquet file.
// The file is written to a temp path and renamed into place.
func WriteParquet[T any](path string, rows []T) error {
	return filepaths.WriteAtomic(path, func(w io.Writer) error {
		writer := parquet.NewGenericWriter[T](w, parquet.Compression(&parquet.Gzip))
		if len(rows) > 0 {
			if _, err := writer.Write(rows); err != nil {
				return fmt.Errorf("failed to write rows to %s: %w", path, err)
			}
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("failed to close parquet writer for %s: %w", path, err)
		}
		return nil
	})
}

// ReadParquet reads every row of a parquet file
func ReadParquet[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file %s: %w", path, err)
	}
	return rows, nil
}

// ColumnNames returns the parquet column names of row type T, in schema order
func ColumnNames[T any]() []string {
	s := parquet.SchemaOf(new(T))
	var res []string
	for _, f := range s.Fields() {
		res = append(res, f.Name())
	}
	return res
}
