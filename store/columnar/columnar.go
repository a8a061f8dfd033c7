// Package columnar implements a group-oriented store of compressed column
// blocks on any blobstore.BlobStore.
//
// Layout:
//
//	manifest.json                      groups, row counts, compression
//	groups/<id>/<column>/<block>.blk   one block of BlockRows bytes
//
// Every value is an unsigned byte, so feature channels and the VQ index
// column share one encoding. Writes rewrite only the blocks a row range
// touches. The manifest is replaced atomically with Put.
package columnar

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/qvcompress/blobstore"
	"github.com/hupe1980/qvcompress/codec"
	"github.com/hupe1980/qvcompress/feature"
	"github.com/hupe1980/qvcompress/store"
)

type options struct {
	compression Compression
	blockRows   int
	readOnly    bool
	codec       codec.Codec
}

// Option configures a Store.
type Option func(*options)

// WithCompression selects the block compression of a new store. Existing
// stores keep the compression recorded in their manifest.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithBlockRows sets the rows per block of a new store.
func WithBlockRows(n int) Option {
	return func(o *options) {
		o.blockRows = n
	}
}

// WithReadOnly rejects every write.
func WithReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
	}
}

// WithCodec sets the manifest codec. Defaults to codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// Store is a group-oriented store on a BlobStore.
type Store struct {
	name        string
	blobs       blobstore.BlobStore
	codec       codec.Codec
	readOnly    bool
	compression Compression
	rowsPer     int // rows per block

	mu       sync.RWMutex
	manifest *Manifest
}

var _ store.GroupAppender = (*Store)(nil)

func newOptions(optFns []Option) options {
	opts := options{
		compression: CompressionZSTD,
		blockRows:   DefaultBlockRows,
		codec:       codec.Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Create initializes an empty store. It fails with os.ErrExist when the
// BlobStore already holds a manifest.
func Create(ctx context.Context, blobs blobstore.BlobStore, name string, optFns ...Option) (*Store, error) {
	opts := newOptions(optFns)
	if opts.blockRows <= 0 {
		return nil, fmt.Errorf("columnar: block rows must be positive, got %d", opts.blockRows)
	}

	_, err := blobs.Open(ctx, ManifestFileName)
	switch {
	case err == nil:
		return nil, fmt.Errorf("columnar: create %s: %w", name, os.ErrExist)
	case !errors.Is(err, blobstore.ErrNotFound):
		return nil, fmt.Errorf("columnar: create %s: %w", name, err)
	}

	now := time.Now().UTC()
	s := &Store{
		name:        name,
		blobs:       blobs,
		codec:       opts.codec,
		compression: opts.compression,
		rowsPer:     opts.blockRows,
		manifest: &Manifest{
			Version:     CurrentVersion,
			CreatedAt:   now,
			UpdatedAt:   now,
			Compression: opts.compression.String(),
			BlockRows:   opts.blockRows,
		},
	}
	if err := s.saveLocked(ctx, s.manifest); err != nil {
		return nil, err
	}
	return s, nil
}

// Open opens an existing store. A BlobStore without a manifest is reported
// as an UnsupportedStoreError.
func Open(ctx context.Context, blobs blobstore.BlobStore, name string, optFns ...Option) (*Store, error) {
	opts := newOptions(optFns)

	data, err := blobstore.ReadAll(ctx, blobs, ManifestFileName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, &store.UnsupportedStoreError{Path: name, Reason: "no " + ManifestFileName}
		}
		return nil, fmt.Errorf("columnar: read manifest of %s: %w", name, err)
	}

	m := &Manifest{}
	if err := opts.codec.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("columnar: decode manifest of %s: %w", name, err)
	}
	if m.Version != CurrentVersion {
		return nil, &store.UnsupportedStoreError{Path: name, Reason: fmt.Sprintf("manifest version %d", m.Version)}
	}
	if m.BlockRows <= 0 {
		return nil, fmt.Errorf("columnar: manifest of %s has block_rows %d", name, m.BlockRows)
	}
	c, err := ParseCompression(m.Compression)
	if err != nil {
		return nil, err
	}

	return &Store{
		name:        name,
		blobs:       blobs,
		codec:       opts.codec,
		readOnly:    opts.readOnly,
		compression: c,
		rowsPer:     m.BlockRows,
		manifest:    m,
	}, nil
}

// Manifest returns a copy of the current manifest.
func (s *Store) Manifest() *Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest.clone()
}

// Name implements store.Store.
func (s *Store) Name() string { return s.name }

// Kind implements store.Store.
func (s *Store) Kind() store.Kind { return store.GroupOriented }

// Columns implements store.Store.
func (s *Store) Columns(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cols []string
	for _, g := range s.manifest.Groups {
		for _, c := range g.Columns {
			if c != store.IndexColumn && !slices.Contains(cols, c) {
				cols = append(cols, c)
			}
		}
	}
	return cols, nil
}

// Groups implements store.GroupStore.
func (s *Store) Groups(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, len(s.manifest.Groups))
	for i, g := range s.manifest.Groups {
		paths[i] = g.Path
	}
	return paths, nil
}

// RowCount implements store.GroupStore.
func (s *Store) RowCount(_ context.Context, group string, _ feature.Schema) (int, error) {
	g, err := s.group(group)
	if err != nil {
		return 0, err
	}
	return g.Rows, nil
}

// MissingColumns implements store.GroupStore.
func (s *Store) MissingColumns(_ context.Context, group string, schema feature.Schema) ([]string, error) {
	g, err := s.group(group)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, name := range schema {
		if !slices.Contains(g.Columns, name) {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// ReadColumns implements store.GroupStore.
func (s *Store) ReadColumns(ctx context.Context, group string, schema feature.Schema, start, end int) (*feature.Matrix, error) {
	g, err := s.group(group)
	if err != nil {
		return nil, err
	}
	if err := store.CheckRange(start, end, g.Rows); err != nil {
		return nil, err
	}

	m := feature.NewMatrix(end-start, schema.Len())
	for j, name := range schema {
		if !slices.Contains(g.Columns, name) {
			return nil, &store.MissingFeatureError{Store: s.name, Missing: []string{name}}
		}
		err := s.forEachBlock(g, start, end, func(b, lo, hi int) error {
			values, err := s.readBlock(ctx, g, name, b)
			if err != nil {
				return err
			}
			base := b * s.rowsPer
			for i := lo; i < hi; i++ {
				m.Set(i-start, j, float64(values[i-base]))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// WriteIndex implements store.GroupStore.
func (s *Store) WriteIndex(ctx context.Context, group string, start, end int, index []int) error {
	if len(index) != end-start {
		return fmt.Errorf("%w: %d indices for %d rows", store.ErrInvalidRange, len(index), end-start)
	}
	values := make([]byte, len(index))
	for i, v := range index {
		if v < 0 || v > math.MaxUint8 {
			return fmt.Errorf("columnar: index %d does not fit the %s column", v, store.IndexColumn)
		}
		values[i] = byte(v)
	}
	return s.writeColumns(ctx, group, start, end, map[string][]byte{store.IndexColumn: values})
}

// WriteFeatures implements store.GroupStore.
func (s *Store) WriteFeatures(ctx context.Context, group string, schema feature.Schema, start, end int, m *feature.Matrix) error {
	if m.Rows() != end-start || m.Cols() != schema.Len() {
		return feature.ErrShape
	}
	cols := make(map[string][]byte, schema.Len())
	for j, name := range schema {
		values, err := toBytes(m.Col(j))
		if err != nil {
			return fmt.Errorf("columnar: %s: %w", name, err)
		}
		cols[name] = values
	}
	return s.writeColumns(ctx, group, start, end, cols)
}

// AppendGroup adds a group holding the columns of m, named by schema.
func (s *Store) AppendGroup(ctx context.Context, group string, schema feature.Schema, m *feature.Matrix) error {
	if s.readOnly {
		return store.ErrReadOnly
	}
	if m.Cols() != schema.Len() {
		return feature.ErrShape
	}
	if err := schema.Validate(); err != nil {
		return err
	}

	cols := make([][]byte, schema.Len())
	for j, name := range schema {
		values, err := toBytes(m.Col(j))
		if err != nil {
			return fmt.Errorf("columnar: %s: %w", name, err)
		}
		cols[j] = values
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.manifest.group(group); ok {
		return fmt.Errorf("columnar: group %q already exists", group)
	}
	g := GroupInfo{
		ID:      len(s.manifest.Groups),
		Path:    group,
		Rows:    m.Rows(),
		Columns: slices.Clone(schema),
	}
	for j, name := range schema {
		err := s.forEachBlock(&g, 0, g.Rows, func(b, lo, hi int) error {
			return s.writeBlock(ctx, &g, name, b, cols[j][lo:hi])
		})
		if err != nil {
			return err
		}
	}

	next := s.manifest.clone()
	next.Groups = append(next.Groups, g)
	return s.saveLocked(ctx, next)
}

// Close implements store.Store. All writes are durable once they return.
func (s *Store) Close() error { return nil }

func (s *Store) writeColumns(ctx context.Context, group string, start, end int, cols map[string][]byte) error {
	if s.readOnly {
		return store.ErrReadOnly
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.manifest.group(group)
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrGroupNotFound, group)
	}
	if err := store.CheckRange(start, end, g.Rows); err != nil {
		return err
	}

	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	slices.Sort(names)

	var added []string
	for _, name := range names {
		values := cols[name]
		exists := slices.Contains(g.Columns, name)
		err := s.forEachBlock(g, start, end, func(b, lo, hi int) error {
			base := b * s.rowsPer
			var block []byte
			if exists {
				old, err := s.readBlock(ctx, g, name, b)
				if err != nil {
					return err
				}
				block = slices.Clone(old)
			} else {
				block = make([]byte, s.blockLen(g, b))
			}
			copy(block[lo-base:hi-base], values[lo-start:hi-start])
			return s.writeBlock(ctx, g, name, b, block)
		})
		if err != nil {
			return err
		}
		if !exists {
			added = append(added, name)
		}
	}

	if len(added) == 0 {
		return nil
	}
	// Blocks outside [start, end) of a new column are zero-filled.
	for _, name := range added {
		first, last := start/s.rowsPer, (end-1)/s.rowsPer
		for b := range s.numBlocks(g) {
			if start < end && b >= first && b <= last {
				continue
			}
			if err := s.writeBlock(ctx, g, name, b, make([]byte, s.blockLen(g, b))); err != nil {
				return err
			}
		}
	}
	next := s.manifest.clone()
	ng, _ := next.group(group)
	ng.Columns = append(ng.Columns, added...)
	return s.saveLocked(ctx, next)
}

func (s *Store) group(path string) (*GroupInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.manifest.group(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrGroupNotFound, path)
	}
	out := *g
	out.Columns = slices.Clone(g.Columns)
	return &out, nil
}

func (s *Store) numBlocks(g *GroupInfo) int {
	return (g.Rows + s.rowsPer - 1) / s.rowsPer
}

func (s *Store) blockLen(g *GroupInfo, b int) int {
	return min(s.rowsPer, g.Rows-b*s.rowsPer)
}

// forEachBlock calls fn for every block overlapping [start, end) with the
// overlap as absolute row offsets.
func (s *Store) forEachBlock(g *GroupInfo, start, end int, fn func(b, lo, hi int) error) error {
	if start >= end {
		return nil
	}
	n := s.rowsPer
	for b := start / n; b*n < end; b++ {
		lo, hi := max(start, b*n), min(end, (b+1)*n)
		if err := fn(b, lo, hi); err != nil {
			return err
		}
	}
	return nil
}

func blockName(g *GroupInfo, column string, b int) string {
	return fmt.Sprintf("groups/%d/%s/%06d.blk", g.ID, column, b)
}

func (s *Store) readBlock(ctx context.Context, g *GroupInfo, column string, b int) ([]byte, error) {
	name := blockName(g, column, b)
	data, err := blobstore.ReadAll(ctx, s.blobs, name)
	if err != nil {
		return nil, fmt.Errorf("columnar: read %s: %w", name, err)
	}
	values, err := decodeBlock(data)
	if err != nil {
		return nil, fmt.Errorf("columnar: decode %s: %w", name, err)
	}
	if want := s.blockLen(g, b); len(values) != want {
		return nil, fmt.Errorf("columnar: %s holds %d values, want %d: %w", name, len(values), want, errCorruptBlock)
	}
	return values, nil
}

func (s *Store) writeBlock(ctx context.Context, g *GroupInfo, column string, b int, values []byte) error {
	data, err := encodeBlock(values, s.compression)
	if err != nil {
		return err
	}
	name := blockName(g, column, b)
	if err := s.blobs.Put(ctx, name, data); err != nil {
		return fmt.Errorf("columnar: write %s: %w", name, err)
	}
	return nil
}

func (s *Store) saveLocked(ctx context.Context, m *Manifest) error {
	next := m.clone()
	next.ID = m.ID + 1
	next.UpdatedAt = time.Now().UTC()
	data, err := s.codec.Marshal(next)
	if err != nil {
		return fmt.Errorf("columnar: encode manifest: %w", err)
	}
	if err := s.blobs.Put(ctx, ManifestFileName, data); err != nil {
		return fmt.Errorf("columnar: write manifest: %w", err)
	}
	s.manifest = next
	return nil
}

func toBytes(col []float64) ([]byte, error) {
	out := make([]byte, len(col))
	for i, v := range col {
		if v < 0 || v > math.MaxUint8 || v != math.Trunc(v) {
			return nil, fmt.Errorf("value %v at row %d is not an unsigned byte", v, i)
		}
		out[i] = byte(v)
	}
	return out, nil
}
