package artifact_source

import (
	"context"
	"fmt"
	"time"
)

// Fetcher obtains the daily EDGAR log archive for a date
type Fetcher interface {
	Identifier() string
	// Fetch writes the archive for date to destPath, atomically.
	// All failures are returned as a *types.FetchError.
	Fetch(ctx context.Context, date time.Time, destPath string) error
	Close() error
}

// ArchiveName returns the name EDGAR publishes the archive for date under, e.g. log20170630.zip
func ArchiveName(date time.Time) string {
	return fmt.Sprintf("log%s.zip", date.Format("20060102"))
}
