package types

import "github.com/turbot/edgar-log-pipeline/constants"

// Location is the geographic position resolved for an IP address
type Location struct {
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	RegionName  string `json:"region_name"`
	CityName    string `json:"city_name"`
}

func UnknownLocation() Location {
	return Location{
		CountryCode: constants.UnknownLocation,
		CountryName: constants.UnknownLocation,
		RegionName:  constants.UnknownLocation,
		CityName:    constants.UnknownLocation,
	}
}

// IsEmpty returns true if no field of the location is populated
func (l Location) IsEmpty() bool {
	return l.CountryCode == "" && l.CountryName == "" && l.RegionName == "" && l.CityName == ""
}

// WithUnknownDefaults replaces any empty field with the unknown sentinel
func (l Location) WithUnknownDefaults() Location {
	if l.CountryCode == "" {
		l.CountryCode = constants.UnknownLocation
	}
	if l.CountryName == "" {
		l.CountryName = constants.UnknownLocation
	}
	if l.RegionName == "" {
		l.RegionName = constants.UnknownLocation
	}
	if l.CityName == "" {
		l.CityName = constants.UnknownLocation
	}
	return l
}
