package codebook

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidNumClusters is returned for a cluster count that is not positive.
	ErrInvalidNumClusters = errors.New("codebook: number of clusters must be positive")
	// ErrInvalidNumObservations is returned for an observation count that is not positive.
	ErrInvalidNumObservations = errors.New("codebook: number of observations must be positive")
	// ErrEmpty is returned for a codebook without centroids.
	ErrEmpty = errors.New("codebook: no centroids")
)

// InsufficientDataError is returned when no usable training rows were found.
type InsufficientDataError struct {
	Requested int
	// Dropped counts rows that were read but removed as sentinel rows.
	Dropped int
}

func (e *InsufficientDataError) Error() string {
	if e.Dropped > 0 {
		return fmt.Sprintf("codebook: no usable observations (requested %d, %d sentinel rows dropped)", e.Requested, e.Dropped)
	}
	return fmt.Sprintf("codebook: no observations available (requested %d)", e.Requested)
}

// DegenerateClusterError is returned when more clusters are requested than
// rows remain after sentinel filtering.
type DegenerateClusterError struct {
	Clusters int
	Rows     int
}

func (e *DegenerateClusterError) Error() string {
	return fmt.Sprintf("codebook: cannot train %d clusters from %d rows", e.Clusters, e.Rows)
}

// FormatError reports a malformed codebook file. Line is 1-based; 0 means the
// problem is not tied to a line.
type FormatError struct {
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line == 0 {
		return "codebook: " + e.Reason
	}
	return fmt.Sprintf("codebook: line %d: %s", e.Line, e.Reason)
}

// PartialTrainingWarning describes a store that held fewer observations than
// requested. It is reported through the diagnostics sink and in Result, never
// returned as an error.
type PartialTrainingWarning struct {
	Observed  int
	Requested int
}

func (w *PartialTrainingWarning) Error() string {
	return fmt.Sprintf("only found %d observations, less than the requested %d", w.Observed, w.Requested)
}
