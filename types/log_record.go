package types

import "time"

// LogRecord is a single cleaned EDGAR access-log row, as written by the convert stage
// and carried through bot filtering.
type LogRecord struct {
	Timestamp time.Time `parquet:"timestamp,timestamp(millisecond)" json:"timestamp"`
	Ip        string    `parquet:"ip" json:"ip"`
	Zone      int32     `parquet:"zone" json:"zone"`
	Cik       *int64    `parquet:"cik,optional" json:"cik,omitempty"`
	Accession *string   `parquet:"accession,optional" json:"accession,omitempty"`
	Extension *string   `parquet:"extension,optional" json:"extension,omitempty"`
	Code      int32     `parquet:"code" json:"code"`
	Size      *int64    `parquet:"size,optional" json:"size,omitempty"`
	Idx       int32     `parquet:"idx" json:"idx"`
	NoRefer   int32     `parquet:"norefer" json:"norefer"`
	NoAgent   int32     `parquet:"noagent" json:"noagent"`
	Find      int32     `parquet:"find" json:"find"`
	Crawler   int32     `parquet:"crawler" json:"crawler"`
	Browser   *string   `parquet:"browser,optional" json:"browser,omitempty"`
}

// EnrichedRecord is a LogRecord plus the location resolved for its address.
// The location columns are never empty: unresolved addresses carry "unknown".
type EnrichedRecord struct {
	Timestamp time.Time `parquet:"timestamp,timestamp(millisecond)" json:"timestamp"`
	Ip        string    `parquet:"ip" json:"ip"`
	Zone      int32     `parquet:"zone" json:"zone"`
	Cik       *int64    `parquet:"cik,optional" json:"cik,omitempty"`
	Accession *string   `parquet:"accession,optional" json:"accession,omitempty"`
	Extension *string   `parquet:"extension,optional" json:"extension,omitempty"`
	Code      int32     `parquet:"code" json:"code"`
	Size      *int64    `parquet:"size,optional" json:"size,omitempty"`
	Idx       int32     `parquet:"idx" json:"idx"`
	NoRefer   int32     `parquet:"norefer" json:"norefer"`
	NoAgent   int32     `parquet:"noagent" json:"noagent"`
	Find      int32     `parquet:"find" json:"find"`
	Crawler   int32     `parquet:"crawler" json:"crawler"`
	Browser   *string   `parquet:"browser,optional" json:"browser,omitempty"`

	CleanedIp   string `parquet:"cleaned_ip" json:"cleaned_ip"`
	CountryCode string `parquet:"country_code" json:"country_code"`
	CountryName string `parquet:"country_name" json:"country_name"`
	RegionName  string `parquet:"region_name" json:"region_name"`
	CityName    string `parquet:"city_name" json:"city_name"`
}

func NewEnrichedRecord(r LogRecord, cleanedIp string, loc Location) EnrichedRecord {
	return EnrichedRecord{
		Timestamp:   r.Timestamp,
		Ip:          r.Ip,
		Zone:        r.Zone,
		Cik:         r.Cik,
		Accession:   r.Accession,
		Extension:   r.Extension,
		Code:        r.Code,
		Size:        r.Size,
		Idx:         r.Idx,
		NoRefer:     r.NoRefer,
		NoAgent:     r.NoAgent,
		Find:        r.Find,
		Crawler:     r.Crawler,
		Browser:     r.Browser,
		CleanedIp:   cleanedIp,
		CountryCode: loc.CountryCode,
		CountryName: loc.CountryName,
		RegionName:  loc.RegionName,
		CityName:    loc.CityName,
	}
}

// LogRecord returns the access-log portion of the record
func (r EnrichedRecord) LogRecord() LogRecord {
	return LogRecord{
		Timestamp: r.Timestamp,
		Ip:        r.Ip,
		Zone:      r.Zone,
		Cik:       r.Cik,
		Accession: r.Accession,
		Extension: r.Extension,
		Code:      r.Code,
		Size:      r.Size,
		Idx:       r.Idx,
		NoRefer:   r.NoRefer,
		NoAgent:   r.NoAgent,
		Find:      r.Find,
		Crawler:   r.Crawler,
		Browser:   r.Browser,
	}
}

func (r EnrichedRecord) Location() Location {
	return Location{
		CountryCode: r.CountryCode,
		CountryName: r.CountryName,
		RegionName:  r.RegionName,
		CityName:    r.CityName,
	}
}
