package store

import (
	"errors"
	"fmt"
)

var (
	// ErrWrite matches every *WriteError.
	ErrWrite = errors.New("store write failed")
	// ErrNotFound is returned when an instrument has no series on disk.
	ErrNotFound = errors.New("series not found")
	// ErrOutOfOrder is returned when a batch does not strictly extend the series.
	ErrOutOfOrder = errors.New("rows do not extend the series")
	// ErrCorrupt is returned when a stored line cannot be decoded.
	ErrCorrupt = errors.New("corrupt series file")
)

// WriteError is an I/O failure while appending to a series file.
type WriteError struct {
	Instrument string
	Path       string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write series %s (%s): %v", e.Instrument, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Is reports ErrWrite as a match so callers need not know the concrete type.
func (e *WriteError) Is(target error) bool { return target == ErrWrite }
