package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidChunkSize is returned for a chunk size that is not positive.
	ErrInvalidChunkSize = errors.New("store: chunk size must be positive")
	// ErrGroupNotFound is returned when a group locator is unknown.
	ErrGroupNotFound = errors.New("store: group not found")
	// ErrInvalidRange is returned for a row range outside a group.
	ErrInvalidRange = errors.New("store: invalid row range")
	// ErrReadOnly is returned when writing to a store opened read-only.
	ErrReadOnly = errors.New("store: opened read-only")
)

// MissingFeatureError lists every requested channel the store does not carry.
type MissingFeatureError struct {
	Store   string
	Missing []string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("store %s is missing the following quality values: %s", e.Store, strings.Join(e.Missing, ", "))
}

// UnsupportedStoreError is returned when a path does not name a store format
// this package can open.
type UnsupportedStoreError struct {
	Path   string
	Reason string
}

func (e *UnsupportedStoreError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unsupported store: %s", e.Path)
	}
	return fmt.Sprintf("unsupported store %s: %s", e.Path, e.Reason)
}

// CheckRange validates [start, end) against a group of rows rows.
func CheckRange(start, end, rows int) error {
	if start < 0 || end > rows || start > end {
		return fmt.Errorf("%w: [%d,%d) of %d rows", ErrInvalidRange, start, end, rows)
	}
	return nil
}
