package schema

import (
	"github.com/turbot/edgar-log-pipeline/constants"
)

type ColumnType string

const (
	ColumnTypeString  ColumnType = "string"
	ColumnTypeInteger ColumnType = "integer"
	ColumnTypeDate    ColumnType = "date"
	ColumnTypeTime    ColumnType = "time"
)

// ColumnSchema describes a column of the raw EDGAR log table
type ColumnSchema struct {
	// SourceName is the header name as it appears in the raw csv, after normalisation
	SourceName string
	// ColumnName is the name of the column in the converted table
	ColumnName string
	Type       ColumnType
	// Required columns must be present in the header and non-empty in every row
	Required bool
	// Nullable columns map an empty value to null rather than zero
	Nullable bool
}

// headerAliases maps raw header names which are misspelled in the published logs
var headerAliases = map[string]string{
	"extention": constants.ColumnExtension,
}

// CanonicalHeader returns the column name for a normalised raw header name
func CanonicalHeader(name string) string {
	if alias, ok := headerAliases[name]; ok {
		return alias
	}
	return name
}

// LogColumns is the schema of the raw EDGAR log table
var LogColumns = []*ColumnSchema{
	{SourceName: "ip", ColumnName: constants.ColumnIp, Type: ColumnTypeString, Required: true},
	{SourceName: "date", ColumnName: constants.ColumnDate, Type: ColumnTypeDate, Required: true},
	{SourceName: "time", ColumnName: constants.ColumnTime, Type: ColumnTypeTime, Required: true},
	{SourceName: "zone", ColumnName: constants.ColumnZone, Type: ColumnTypeInteger},
	{SourceName: "cik", ColumnName: constants.ColumnCik, Type: ColumnTypeInteger, Nullable: true},
	{SourceName: "accession", ColumnName: constants.ColumnAccession, Type: ColumnTypeString, Nullable: true},
	{SourceName: "extention", ColumnName: constants.ColumnExtension, Type: ColumnTypeString, Nullable: true},
	{SourceName: "code", ColumnName: constants.ColumnCode, Type: ColumnTypeInteger, Required: true},
	{SourceName: "size", ColumnName: constants.ColumnSize, Type: ColumnTypeInteger, Nullable: true},
	{SourceName: "idx", ColumnName: constants.ColumnIdx, Type: ColumnTypeInteger},
	{SourceName: "norefer", ColumnName: constants.ColumnNoRefer, Type: ColumnTypeInteger},
	{SourceName: "noagent", ColumnName: constants.ColumnNoAgent, Type: ColumnTypeInteger},
	{SourceName: "find", ColumnName: constants.ColumnFind, Type: ColumnTypeInteger},
	{SourceName: "crawler", ColumnName: constants.ColumnCrawler, Type: ColumnTypeInteger},
	{SourceName: "browser", ColumnName: constants.ColumnBrowser, Type: ColumnTypeString, Nullable: true},
}

// RequiredColumns returns the names of the columns which must be present in the raw header
func RequiredColumns() []string {
	var res []string
	for _, c := range LogColumns {
		if c.Required {
			res = append(res, c.ColumnName)
		}
	}
	return res
}
