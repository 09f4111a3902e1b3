package types

import (
	"errors"
	"fmt"
)

var (
	// ErrLocationNotFound is returned by a lookup which has no location for an address
	ErrLocationNotFound = errors.New("location not found")
	// ErrMissingInput is returned when a stage is asked to run before its input artifact exists
	ErrMissingInput = errors.New("stage input missing")
)

// FetchError is returned when the archive for a date cannot be obtained from a source
type FetchError struct {
	Date   string
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch archive for %s from %s: %v", e.Date, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ArchiveError is returned when a downloaded archive is missing, corrupt,
// or does not contain exactly one table
type ArchiveError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ArchiveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid archive %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid archive %s: %s", e.Path, e.Reason)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// SchemaError describes a row (or header) which does not match the expected table schema.
// Row is the 1-based data row number, or 0 for the header.
type SchemaError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("invalid header: column %q: %v", e.Column, e.Err)
	}
	return fmt.Sprintf("row %d: column %q value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// LookupMiss records a geolocation lookup which failed or found nothing.
// It is logged and counted but never fails a stage.
type LookupMiss struct {
	Ip  string
	Err error
}

func (e *LookupMiss) Error() string {
	return fmt.Sprintf("no location for %s: %v", e.Ip, e.Err)
}

func (e *LookupMiss) Unwrap() error {
	return e.Err
}

// StageError wraps the failure of a single stage for a single date
type StageError struct {
	Date  string
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed for %s: %v", e.Stage, e.Date, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
