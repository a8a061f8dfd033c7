package store

import (
	"context"
	"errors"
	"io"
	"iter"
	"slices"

	"github.com/hupe1980/qvcompress/feature"
)

// DefaultChunkSize is the number of rows read per chunk when the caller does
// not pick one.
const DefaultChunkSize = 500000

// Chunk is a bounded row range of one group. A chunk never spans two groups.
type Chunk struct {
	// Locator is the group path or record name.
	Locator string
	// Start and End delimit the rows [Start, End) within the group.
	Start int
	End   int
	// Schema describes the columns of Data.
	Schema feature.Schema
	// Data holds End-Start rows.
	Data *feature.Matrix
	// GroupRows is the total row count of the group the chunk belongs to.
	GroupRows int
	// Record is the source record for record-oriented stores, nil otherwise.
	Record *Record
}

// Rows returns the number of rows in the chunk.
func (c Chunk) Rows() int { return c.End - c.Start }

type chunkOptions struct {
	maxRows int
}

// ChunkOption configures a ChunkSource.
type ChunkOption func(*chunkOptions)

// WithMaxRows stops the source once n rows were emitted. The last chunk is
// truncated so exactly n rows are produced when the store holds at least n.
// n <= 0 means no cap.
func WithMaxRows(n int) ChunkOption {
	return func(o *chunkOptions) {
		o.maxRows = n
	}
}

// group is one addressable unit the source splits into chunks.
type group struct {
	locator string
	rows    int
	record  *Record
	read    func(ctx context.Context, start, end int) (*feature.Matrix, error)
	visited bool
}

// groupCursor yields groups in store order and io.EOF when exhausted.
type groupCursor interface {
	check(ctx context.Context) error
	next(ctx context.Context) (*group, error)
	close()
}

// ChunkSource produces a finite, ordered sequence of chunks. It terminates
// when the store is exhausted or the row cap is reached.
type ChunkSource struct {
	cursor    groupCursor
	schema    feature.Schema
	chunkSize int
	maxRows   int

	checked bool
	done    bool
	current *group
	pos     int
	emitted int
}

// NewChunkSource creates a source over a group-oriented store.
func NewChunkSource(s GroupStore, schema feature.Schema, chunkSize int, opts ...ChunkOption) (*ChunkSource, error) {
	return newChunkSource(&groupStoreCursor{store: s, schema: schema}, schema, chunkSize, opts)
}

// NewRecordChunkSource creates a source over a record-oriented store. Each
// record is treated as a group; a record without bases yields one empty chunk.
func NewRecordChunkSource(s RecordStore, schema feature.Schema, chunkSize int, opts ...ChunkOption) (*ChunkSource, error) {
	return newChunkSource(&recordStoreCursor{store: s, schema: schema}, schema, chunkSize, opts)
}

// NewStoreChunkSource dispatches on the store kind.
func NewStoreChunkSource(s Store, schema feature.Schema, chunkSize int, opts ...ChunkOption) (*ChunkSource, error) {
	switch st := s.(type) {
	case GroupStore:
		return NewChunkSource(st, schema, chunkSize, opts...)
	case RecordStore:
		return NewRecordChunkSource(st, schema, chunkSize, opts...)
	default:
		return nil, &UnsupportedStoreError{Path: s.Name(), Reason: "store is neither group nor record oriented"}
	}
}

func newChunkSource(c groupCursor, schema feature.Schema, chunkSize int, opts []ChunkOption) (*ChunkSource, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	var o chunkOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &ChunkSource{
		cursor:    c,
		schema:    schema.Clone(),
		chunkSize: chunkSize,
		maxRows:   o.maxRows,
	}, nil
}

// Schema returns the channels every chunk carries.
func (c *ChunkSource) Schema() feature.Schema { return c.schema }

// Emitted returns the number of rows produced so far.
func (c *ChunkSource) Emitted() int { return c.emitted }

// Next returns the next chunk, or io.EOF once the source is exhausted or the
// row cap was reached. Missing channels are reported before the first chunk.
func (c *ChunkSource) Next(ctx context.Context) (Chunk, error) {
	if c.done {
		return Chunk{}, io.EOF
	}
	if !c.checked {
		c.checked = true
		if err := c.cursor.check(ctx); err != nil {
			c.finish()
			return Chunk{}, err
		}
	}

	for {
		if c.maxRows > 0 && c.emitted >= c.maxRows {
			c.finish()
			return Chunk{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return Chunk{}, err
		}

		if c.current == nil || c.pos >= c.current.rows {
			if g := c.current; g != nil && g.record != nil && g.rows == 0 && !g.visited {
				// Records without bases still reach the writer.
				g.visited = true
				return Chunk{
					Locator: g.locator,
					Schema:  c.schema,
					Data:    feature.NewMatrix(0, c.schema.Len()),
					Record:  g.record,
				}, nil
			}
			g, err := c.cursor.next(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					c.finish()
				}
				return Chunk{}, err
			}
			c.current, c.pos = g, 0
			continue
		}

		n := min(c.chunkSize, c.current.rows-c.pos)
		if c.maxRows > 0 {
			n = min(n, c.maxRows-c.emitted)
		}
		start, end := c.pos, c.pos+n

		data, err := c.current.read(ctx, start, end)
		if err != nil {
			return Chunk{}, err
		}

		c.pos = end
		c.emitted += n
		return Chunk{
			Locator:   c.current.locator,
			Start:     start,
			End:       end,
			Schema:    c.schema,
			Data:      data,
			GroupRows: c.current.rows,
			Record:    c.current.record,
		}, nil
	}
}

// All returns the remaining chunks as an iterator. Iteration stops after the
// first error, which is yielded.
func (c *ChunkSource) All(ctx context.Context) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		for {
			ch, err := c.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(ch, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the underlying cursor. Calling Close on a finished source is a no-op.
func (c *ChunkSource) Close() {
	c.finish()
}

func (c *ChunkSource) finish() {
	if !c.done {
		c.done = true
		c.cursor.close()
	}
}

type groupStoreCursor struct {
	store  GroupStore
	schema feature.Schema
	groups []string
	i      int
}

func (gc *groupStoreCursor) check(ctx context.Context) error {
	groups, err := gc.store.Groups(ctx)
	if err != nil {
		return err
	}
	gc.groups = groups

	var missing []string
	for _, g := range groups {
		m, err := gc.store.MissingColumns(ctx, g, gc.schema)
		if err != nil {
			return err
		}
		for _, name := range m {
			if !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
		}
	}
	if len(missing) > 0 {
		return &MissingFeatureError{Store: gc.store.Name(), Missing: orderBySchema(gc.schema, missing)}
	}
	return nil
}

func (gc *groupStoreCursor) next(ctx context.Context) (*group, error) {
	if gc.i >= len(gc.groups) {
		return nil, io.EOF
	}
	locator := gc.groups[gc.i]
	gc.i++

	rows, err := gc.store.RowCount(ctx, locator, gc.schema)
	if err != nil {
		return nil, err
	}
	return &group{
		locator: locator,
		rows:    rows,
		read: func(ctx context.Context, start, end int) (*feature.Matrix, error) {
			return gc.store.ReadColumns(ctx, locator, gc.schema, start, end)
		},
	}, nil
}

func (gc *groupStoreCursor) close() {}

type recordStoreCursor struct {
	store  RecordStore
	schema feature.Schema
	next2  func() (*Record, error, bool)
	stop   func()
}

// check scans every record before the first chunk, so a tag missing from
// any record fails the run before output exists. Records restarts from the
// first record, so the pull iterator is primed only afterwards.
func (rc *recordStoreCursor) check(ctx context.Context) error {
	var missing []string
	for rec, err := range rc.store.Records(ctx) {
		if err != nil {
			return err
		}
		for _, name := range rec.MissingFeatures(rc.schema) {
			if !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
		}
	}
	if len(missing) > 0 {
		return &MissingFeatureError{Store: rc.store.Name(), Missing: orderBySchema(rc.schema, missing)}
	}
	rc.next2, rc.stop = iter.Pull2(rc.store.Records(ctx))
	return nil
}

func (rc *recordStoreCursor) next(_ context.Context) (*group, error) {
	rec, err, ok := rc.next2()
	if !ok {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}

	m, err := rec.Features(rc.schema)
	if err != nil {
		return nil, err
	}
	return &group{
		locator: rec.Name(),
		rows:    m.Rows(),
		record:  rec,
		read: func(_ context.Context, start, end int) (*feature.Matrix, error) {
			return m.Slice(start, end), nil
		},
	}, nil
}

func (rc *recordStoreCursor) close() {
	if rc.stop != nil {
		rc.stop()
	}
}

func orderBySchema(schema feature.Schema, names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range schema {
		if slices.Contains(names, name) {
			out = append(out, name)
		}
	}
	return out
}
