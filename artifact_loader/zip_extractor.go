package artifact_loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/turbot/edgar-log-pipeline/filepaths"
	"github.com/turbot/edgar-log-pipeline/types"
)

const ZipExtractorIdentifier = "zip"

// ZipExtractor extracts the csv table from a daily EDGAR archive.
// Directories and non-csv members (such as the README shipped with some archives) are ignored.
// An archive with no csv member, or more than one, is rejected.
type ZipExtractor struct{}

func NewZipExtractor() *ZipExtractor {
	return &ZipExtractor{}
}

func (z *ZipExtractor) Identifier() string {
	return ZipExtractorIdentifier
}

func (z *ZipExtractor) Extract(ctx context.Context, archivePath, destPath string) error {
	info, err := os.Stat(archivePath)
	if err != nil {
		return &types.ArchiveError{Path: archivePath, Reason: "archive missing", Err: err}
	}
	if info.Size() == 0 {
		return &types.ArchiveError{Path: archivePath, Reason: "archive is empty"}
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return &types.ArchiveError{Path: archivePath, Reason: "archive unreadable", Err: err}
	}
	defer r.Close()

	var tables []*zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.EqualFold(path.Ext(f.Name), ".csv") {
			tables = append(tables, f)
		}
	}
	switch len(tables) {
	case 0:
		return &types.ArchiveError{Path: archivePath, Reason: "no csv table found"}
	case 1:
	default:
		names := make([]string, len(tables))
		for i, f := range tables {
			names[i] = f.Name
		}
		return &types.ArchiveError{Path: archivePath, Reason: fmt.Sprintf("expected one csv table, found %d: %s", len(tables), strings.Join(names, ", "))}
	}

	table := tables[0]
	rc, err := table.Open()
	if err != nil {
		return &types.ArchiveError{Path: archivePath, Reason: fmt.Sprintf("cannot open %s", table.Name), Err: err}
	}
	defer rc.Close()

	err = filepaths.WriteAtomic(destPath, func(w io.Writer) error {
		if _, err := io.Copy(w, &contextReader{ctx: ctx, r: rc}); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &types.ArchiveError{Path: archivePath, Reason: fmt.Sprintf("corrupt member %s", table.Name), Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Debug("Extracted archive", "archive", archivePath, "member", table.Name, "bytes", table.UncompressedSize64)
	return nil
}

// contextReader stops a copy once the context is cancelled
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
