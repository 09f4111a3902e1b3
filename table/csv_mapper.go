package table

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/turbot/edgar-log-pipeline/constants"
	"github.com/turbot/edgar-log-pipeline/schema"
	"github.com/turbot/edgar-log-pipeline/types"
	"github.com/turbot/pipe-fittings/utils"
)

const timestampLayout = "2006-01-02 15:04:05"

var (
	errEmpty      = errors.New("value is required")
	errNotInteger = errors.New("not an integer")
)

// CsvMapper maps raw EDGAR csv rows to LogRecords, using the column positions
// found in the header
type CsvMapper struct {
	columns map[string]int
}

// NewCsvMapper builds a mapper from the header row. Header names are normalised to
// snake case and known misspellings are corrected. A header missing a required column
// returns a SchemaError.
func NewCsvMapper(header []string) (*CsvMapper, error) {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		name := schema.CanonicalHeader(strcase.ToSnake(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))))
		if _, ok := columns[name]; ok {
			return nil, &types.SchemaError{Column: name, Err: errors.New("duplicate column")}
		}
		columns[name] = i
	}

	var missing []string
	for _, c := range schema.RequiredColumns() {
		if _, ok := columns[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &types.SchemaError{
			Column: strings.Join(missing, ", "),
			Err:    fmt.Errorf("missing required %s", utils.Pluralize("column", len(missing))),
		}
	}
	return &CsvMapper{columns: columns}, nil
}

// Map converts a single row. rowNumber is used to give context to a SchemaError.
func (m *CsvMapper) Map(rowNumber int, row []string) (types.LogRecord, error) {
	var rec types.LogRecord
	p := rowParser{row: row, rowNumber: rowNumber, columns: m.columns}

	rec.Ip = p.requiredString(constants.ColumnIp)
	rec.Timestamp = p.timestamp()
	rec.Code = p.requiredInt32(constants.ColumnCode)
	rec.Zone = p.int32(constants.ColumnZone)
	rec.Cik = p.nullableInt64(constants.ColumnCik)
	rec.Accession = p.nullableString(constants.ColumnAccession)
	rec.Extension = p.nullableString(constants.ColumnExtension)
	rec.Size = p.nullableInt64(constants.ColumnSize)
	rec.Idx = p.int32(constants.ColumnIdx)
	rec.NoRefer = p.int32(constants.ColumnNoRefer)
	rec.NoAgent = p.int32(constants.ColumnNoAgent)
	rec.Find = p.int32(constants.ColumnFind)
	rec.Crawler = p.int32(constants.ColumnCrawler)
	rec.Browser = p.nullableString(constants.ColumnBrowser)

	if p.err != nil {
		return types.LogRecord{}, p.err
	}
	return rec, nil
}

// rowParser extracts typed values from a row, keeping the first error encountered
type rowParser struct {
	row       []string
	rowNumber int
	columns   map[string]int
	err       error
}

func (p *rowParser) value(column string) string {
	idx, ok := p.columns[column]
	if !ok || idx >= len(p.row) {
		return ""
	}
	return strings.TrimSpace(p.row[idx])
}

func (p *rowParser) fail(column, value string, err error) {
	if p.err == nil {
		p.err = &types.SchemaError{Row: p.rowNumber, Column: column, Value: value, Err: err}
	}
}

func (p *rowParser) requiredString(column string) string {
	v := p.value(column)
	if v == "" {
		p.fail(column, v, errEmpty)
	}
	return v
}

func (p *rowParser) nullableString(column string) *string {
	v := p.value(column)
	if v == "" {
		return nil
	}
	return &v
}

func (p *rowParser) timestamp() time.Time {
	d := p.value(constants.ColumnDate)
	t := p.value(constants.ColumnTime)
	if d == "" {
		p.fail(constants.ColumnDate, d, errEmpty)
		return time.Time{}
	}
	if t == "" {
		p.fail(constants.ColumnTime, t, errEmpty)
		return time.Time{}
	}
	ts, err := time.Parse(timestampLayout, d+" "+t)
	if err != nil {
		p.fail(constants.ColumnDate, d+" "+t, err)
		return time.Time{}
	}
	return ts
}

func (p *rowParser) requiredInt32(column string) int32 {
	v := p.value(column)
	if v == "" {
		p.fail(column, v, errEmpty)
		return 0
	}
	return p.toInt32(column, v)
}

func (p *rowParser) int32(column string) int32 {
	v := p.value(column)
	if v == "" {
		return 0
	}
	return p.toInt32(column, v)
}

func (p *rowParser) toInt32(column, v string) int32 {
	n, err := parseInteger(v)
	if err != nil {
		p.fail(column, v, err)
		return 0
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		p.fail(column, v, errors.New("out of range"))
		return 0
	}
	return int32(n)
}

func (p *rowParser) nullableInt64(column string) *int64 {
	v := p.value(column)
	if v == "" {
		return nil
	}
	n, err := parseInteger(v)
	if err != nil {
		p.fail(column, v, err)
		return nil
	}
	return &n
}

// parseInteger parses an integer which the published logs may render as a float, e.g. "200.0"
func parseInteger(v string) (int64, error) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errNotInteger
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) || math.Abs(f) > math.MaxInt64 {
		return 0, errNotInteger
	}
	return int64(f), nil
}
