package geolocation

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/netip"
	"sort"

	"github.com/turbot/edgar-log-pipeline/schema"
	"github.com/turbot/edgar-log-pipeline/types"
)

// IP2Location marks absent values with a dash
const missingValue = "-"

// Range is a row of an IP2Location style range table: every address from IpFrom to IpTo
// (inclusive, as IPv4 integers) shares the same location
type Range struct {
	IpFrom      int64   `parquet:"ip_from"`
	IpTo        int64   `parquet:"ip_to"`
	CountryCode *string `parquet:"country_code,optional"`
	CountryName *string `parquet:"country_name,optional"`
	RegionName  *string `parquet:"region_name,optional"`
	CityName    *string `parquet:"city_name,optional"`
}

func (r Range) location() types.Location {
	return types.Location{
		CountryCode: value(r.CountryCode),
		CountryName: value(r.CountryName),
		RegionName:  value(r.RegionName),
		CityName:    value(r.CityName),
	}
}

func value(s *string) string {
	if s == nil || *s == missingValue {
		return ""
	}
	return *s
}

// Database resolves IPv4 addresses from an in-memory range table
type Database struct {
	ranges []Range
}

// LoadDatabase loads a range table from a parquet file
func LoadDatabase(path string) (*Database, error) {
	ranges, err := schema.ReadParquet[Range](path)
	if err != nil {
		return nil, fmt.Errorf("failed to load geolocation database: %w", err)
	}
	return NewDatabase(ranges)
}

func NewDatabase(ranges []Range) (*Database, error) {
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].IpFrom < sorted[j].IpFrom })

	for i, r := range sorted {
		if r.IpTo < r.IpFrom {
			return nil, fmt.Errorf("invalid range %d-%d", r.IpFrom, r.IpTo)
		}
		if i > 0 && r.IpFrom <= sorted[i-1].IpTo {
			return nil, fmt.Errorf("overlapping ranges %d-%d and %d-%d", sorted[i-1].IpFrom, sorted[i-1].IpTo, r.IpFrom, r.IpTo)
		}
	}
	return &Database{ranges: sorted}, nil
}

func (d *Database) Len() int {
	return len(d.ranges)
}

func (d *Database) Lookup(_ context.Context, ip string) (types.Location, error) {
	n, err := ipv4ToInt(ip)
	if err != nil {
		return types.Location{}, err
	}

	// first range which ends at or after n
	i := sort.Search(len(d.ranges), func(i int) bool { return d.ranges[i].IpTo >= n })
	if i == len(d.ranges) || d.ranges[i].IpFrom > n {
		return types.Location{}, types.ErrLocationNotFound
	}
	loc := d.ranges[i].location()
	if loc.IsEmpty() {
		return types.Location{}, types.ErrLocationNotFound
	}
	return loc, nil
}

func ipv4ToInt(ip string) (int64, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", ip, err)
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		// the range table only covers IPv4
		return 0, types.ErrLocationNotFound
	}
	b := addr.As4()
	return int64(binary.BigEndian.Uint32(b[:])), nil
}
