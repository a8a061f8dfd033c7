package qvcompress

import (
	"github.com/hupe1980/qvcompress/blobstore"
	"github.com/hupe1980/qvcompress/codebook"
	"github.com/hupe1980/qvcompress/feature"
	"github.com/hupe1980/qvcompress/quantize"
	"github.com/hupe1980/qvcompress/resource"
	"github.com/hupe1980/qvcompress/store"
)

// Error taxonomy. Every fatal condition is one of these types, inspected
// with errors.As.
type (
	// MissingFeatureError lists every requested channel a store lacks.
	MissingFeatureError = store.MissingFeatureError
	// UnsupportedStoreError is returned for a path no store format accepts.
	UnsupportedStoreError = store.UnsupportedStoreError
	// SchemaMismatchError is returned when chunk and codebook channels differ.
	SchemaMismatchError = feature.SchemaMismatchError
	// InsufficientDataError is returned when no usable training rows remain.
	InsufficientDataError = codebook.InsufficientDataError
	// DegenerateClusterError is returned when more codes than rows are requested.
	DegenerateClusterError = codebook.DegenerateClusterError
	// CodebookFormatError is returned for a malformed codebook file.
	CodebookFormatError = codebook.FormatError
	// PartialTrainingWarning is delivered to the logger, never returned.
	PartialTrainingWarning = codebook.PartialTrainingWarning
	// MemoryLimitError is returned when the training matrix exceeds the memory limit.
	MemoryLimitError = resource.MemoryLimitError
)

var (
	ErrInvalidChunkSize       = store.ErrInvalidChunkSize
	ErrInvalidNumClusters     = codebook.ErrInvalidNumClusters
	ErrInvalidNumObservations = codebook.ErrInvalidNumObservations
	ErrTooManyCodes           = quantize.ErrTooManyCodes
	ErrReadOnly               = store.ErrReadOnly
	ErrNotFound               = blobstore.ErrNotFound
)
