package table

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/turbot/edgar-log-pipeline/logging"
	"github.com/turbot/edgar-log-pipeline/schema"
	"github.com/turbot/edgar-log-pipeline/types"
)

// how often (in rows) the reader checks for cancellation
const cancelCheckInterval = 10000

type ConverterConfig struct {
	// drop requests for index pages (idx = 1)
	ExcludeIndexPages bool
	// drop requests the log itself flags as crawlers (crawler = 1)
	ExcludeCrawlers bool
}

// ConversionStats counts rows read and the reason each dropped row was dropped
type ConversionStats struct {
	RowsRead     int
	RowsWritten  int
	SchemaErrors int
	NonSuccess   int
	IndexPages   int
	Crawlers     int
}

func (s *ConversionStats) Counts() map[string]int {
	return map[string]int{
		"rows_read":     s.RowsRead,
		"rows_written":  s.RowsWritten,
		"schema_errors": s.SchemaErrors,
		"non_success":   s.NonSuccess,
		"index_pages":   s.IndexPages,
		"crawlers":      s.Crawlers,
	}
}

// Converter turns an extracted csv table into a typed, filtered, time-ordered parquet table
type Converter struct {
	config ConverterConfig
}

func NewConverter(config ConverterConfig) *Converter {
	return &Converter{config: config}
}

// Convert reads csvPath and writes the converted table to parquetPath.
// Rows which cannot be coerced to the schema are dropped and counted, as are
// rows with a non-2xx status and any excluded index or crawler rows.
// Surviving rows are stably sorted by timestamp.
func (c *Converter) Convert(ctx context.Context, csvPath, parquetPath string) (*ConversionStats, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", csvPath, err)
	}
	defer f.Close()

	records, stats, err := c.ConvertReader(ctx, f)
	if err != nil {
		return stats, fmt.Errorf("failed to convert %s: %w", csvPath, err)
	}

	if err := schema.WriteParquet(parquetPath, records); err != nil {
		return stats, err
	}

	logging.FromContext(ctx).Info("Converted table", "input", csvPath, "rows_read", stats.RowsRead, "rows_written", stats.RowsWritten,
		"schema_errors", stats.SchemaErrors, "non_success", stats.NonSuccess, "index_pages", stats.IndexPages, "crawlers", stats.Crawlers)
	return stats, nil
}

// ConvertReader converts a csv stream into sorted, filtered records
func (c *Converter) ConvertReader(ctx context.Context, r io.Reader) ([]types.LogRecord, *ConversionStats, error) {
	stats := &ConversionStats{}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, stats, &types.SchemaError{Err: errors.New("table is empty")}
		}
		return nil, stats, &types.SchemaError{Err: err}
	}
	mapper, err := NewCsvMapper(header)
	if err != nil {
		return nil, stats, err
	}

	logger := logging.FromContext(ctx)
	var records []types.LogRecord
	for rowNumber := 1; ; rowNumber++ {
		if rowNumber%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		stats.RowsRead++

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			stats.SchemaErrors++
			logger.Debug("Dropping malformed row", "row", rowNumber, "error", err)
			continue
		}
		if err != nil {
			return nil, stats, err
		}

		rec, err := mapper.Map(rowNumber, row)
		if err != nil {
			stats.SchemaErrors++
			logger.Debug("Dropping row which does not match schema", "error", err)
			continue
		}
		if !c.keep(rec, stats) {
			continue
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	stats.RowsWritten = len(records)

	return records, stats, nil
}

func (c *Converter) keep(rec types.LogRecord, stats *ConversionStats) bool {
	if rec.Code < 200 || rec.Code > 299 {
		stats.NonSuccess++
		return false
	}
	if c.config.ExcludeIndexPages && rec.Idx == 1 {
		stats.IndexPages++
		return false
	}
	if c.config.ExcludeCrawlers && rec.Crawler == 1 {
		stats.Crawlers++
		return false
	}
	return true
}
