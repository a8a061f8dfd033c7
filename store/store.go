package store

import (
	"context"
	"iter"

	"github.com/hupe1980/qvcompress/feature"
)

// IndexColumn is the name of the per-base code index column written by the
// quantizer into group-oriented stores.
const IndexColumn = "VQ"

// Kind identifies the addressing model of a store.
type Kind int

const (
	// GroupOriented stores address rows by group path and offset.
	GroupOriented Kind = iota
	// RecordOriented stores address rows by record.
	RecordOriented
)

func (k Kind) String() string {
	switch k {
	case GroupOriented:
		return "group"
	case RecordOriented:
		return "record"
	default:
		return "unknown"
	}
}

// Store is the capability shared by every store kind.
type Store interface {
	// Name identifies the store in errors and logs.
	Name() string
	// Kind reports the addressing model.
	Kind() Kind
	// Columns lists the feature channels present in the store.
	Columns(ctx context.Context) ([]string, error)
	// Close releases the store. Pending writes are flushed.
	Close() error
}

// GroupStore is a store of named groups of column-oriented feature arrays.
type GroupStore interface {
	Store

	// Groups lists group locators in store order.
	Groups(ctx context.Context) ([]string, error)
	// RowCount returns the number of observations of a group.
	RowCount(ctx context.Context, group string, schema feature.Schema) (int, error)
	// MissingColumns returns the schema channels the group lacks.
	MissingColumns(ctx context.Context, group string, schema feature.Schema) ([]string, error)
	// ReadColumns reads rows [start, end) of the schema channels.
	ReadColumns(ctx context.Context, group string, schema feature.Schema, start, end int) (*feature.Matrix, error)
	// WriteIndex stores code indices for rows [start, end) in IndexColumn.
	WriteIndex(ctx context.Context, group string, start, end int, index []int) error
	// WriteFeatures overwrites rows [start, end) of the schema channels.
	WriteFeatures(ctx context.Context, group string, schema feature.Schema, start, end int, m *feature.Matrix) error
}

// GroupAppender is a GroupStore that accepts new groups.
type GroupAppender interface {
	GroupStore

	// AppendGroup adds a group holding the columns of m, named by schema.
	AppendGroup(ctx context.Context, group string, schema feature.Schema, m *feature.Matrix) error
}

// RecordStore is a store of per-read records.
type RecordStore interface {
	Store

	// Header returns the file-level metadata.
	Header() *Header
	// Records iterates records in file order. Each call starts from the first record.
	Records(ctx context.Context) iter.Seq2[*Record, error]
	// CreateWriter creates the output a quantization run rewrites records into.
	CreateWriter(ctx context.Context, path string, header *Header) (RecordWriter, error)
}

// RecordWriter receives rewritten records.
type RecordWriter interface {
	Write(ctx context.Context, rec *Record) error
	Close() error
}
