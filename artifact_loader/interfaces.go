package artifact_loader

import "context"

// Extractor unpacks a downloaded archive into the single table it contains
type Extractor interface {
	Identifier() string
	// Extract writes the table contained in archivePath to destPath
	Extract(ctx context.Context, archivePath, destPath string) error
}
