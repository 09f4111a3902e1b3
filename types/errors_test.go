package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "fetch",
			err:     &FetchError{Date: "2017-06-30", Source: "sec_edgar", Err: cause},
			wantMsg: "failed to fetch archive for 2017-06-30 from sec_edgar: connection reset",
		},
		{
			name:    "archive with cause",
			err:     &ArchiveError{Path: "downloads/2017-06-30.zip", Reason: "unreadable", Err: cause},
			wantMsg: "invalid archive downloads/2017-06-30.zip: unreadable: connection reset",
		},
		{
			name:    "schema row",
			err:     &SchemaError{Row: 3, Column: "code", Value: "abc", Err: cause},
			wantMsg: `row 3: column "code" value "abc": connection reset`,
		},
		{
			name:    "schema header",
			err:     &SchemaError{Column: "ip", Err: cause},
			wantMsg: `invalid header: column "ip": connection reset`,
		},
		{
			name:    "lookup miss",
			err:     &LookupMiss{Ip: "9.9.9.0", Err: cause},
			wantMsg: "no location for 9.9.9.0: connection reset",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			// every error in the taxonomy unwraps to its cause, even when wrapped again
			assert.ErrorIs(t, fmt.Errorf("outer: %w", tt.err), cause)
		})
	}
}

func TestStageErrorAs(t *testing.T) {
	err := fmt.Errorf("run: %w", &StageError{Date: "2017-06-30", Stage: "extract", Err: &ArchiveError{Path: "x.zip", Reason: "no table found"}})

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "extract", stageErr.Stage)

	var archiveErr *ArchiveError
	require.ErrorAs(t, err, &archiveErr)
	assert.Equal(t, "no table found", archiveErr.Reason)
}

func TestLocationWithUnknownDefaults(t *testing.T) {
	loc := Location{CountryName: "Germany"}.WithUnknownDefaults()
	assert.Equal(t, Location{CountryCode: "unknown", CountryName: "Germany", RegionName: "unknown", CityName: "unknown"}, loc)
	assert.True(t, Location{}.IsEmpty())
	assert.Equal(t, UnknownLocation(), Location{}.WithUnknownDefaults())
}
