package pipeline

import (
	"context"
	"time"
)

// Fetcher obtains the raw archive for a date and writes it to destPath
type Fetcher interface {
	Identifier() string
	Fetch(ctx context.Context, date time.Time, destPath string) error
}

// Extractor writes the single table contained in an archive to destPath
type Extractor interface {
	Identifier() string
	Extract(ctx context.Context, archivePath, destPath string) error
}
