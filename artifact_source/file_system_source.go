package artifact_source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/turbot/edgar-log-pipeline/filepaths"
	"github.com/turbot/edgar-log-pipeline/helpers"
	"github.com/turbot/edgar-log-pipeline/types"
)

const FileSystemSourceIdentifier = "file_system"

// FileSystemSource copies archives from a local directory holding logYYYYMMDD.zip files
type FileSystemSource struct {
	dir string
}

func NewFileSystemSource(dir string) (*FileSystemSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid source path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory", dir)
	}
	return &FileSystemSource{dir: dir}, nil
}

func (s *FileSystemSource) Identifier() string {
	return FileSystemSourceIdentifier
}

func (s *FileSystemSource) Fetch(ctx context.Context, date time.Time, destPath string) error {
	sourcePath := filepath.Join(s.dir, ArchiveName(date))
	fetchErr := func(err error) error {
		return &types.FetchError{Date: helpers.FormatDate(date), Source: sourcePath, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return fetchErr(err)
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return fetchErr(err)
	}
	defer f.Close()

	err = filepaths.WriteAtomic(destPath, func(w io.Writer) error {
		_, err := io.Copy(w, f)
		return err
	})
	if err != nil {
		return fetchErr(err)
	}
	return nil
}

func (s *FileSystemSource) Close() error {
	return nil
}
