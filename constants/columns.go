package constants

// columns of the raw EDGAR log csv, after header normalisation
const (
	ColumnIp        = "ip"
	ColumnDate      = "date"
	ColumnTime      = "time"
	ColumnZone      = "zone"
	ColumnCik       = "cik"
	ColumnAccession = "accession"
	ColumnExtension = "extension"
	ColumnCode      = "code"
	ColumnSize      = "size"
	ColumnIdx       = "idx"
	ColumnNoRefer   = "norefer"
	ColumnNoAgent   = "noagent"
	ColumnFind      = "find"
	ColumnCrawler   = "crawler"
	ColumnBrowser   = "browser"
)

// columns added by the pipeline
const (
	ColumnTimestamp   = "timestamp"
	ColumnCleanedIp   = "cleaned_ip"
	ColumnCountryCode = "country_code"
	ColumnCountryName = "country_name"
	ColumnRegionName  = "region_name"
	ColumnCityName    = "city_name"
)

// UnknownLocation is written to every location column when an address could not be resolved
const UnknownLocation = "unknown"
