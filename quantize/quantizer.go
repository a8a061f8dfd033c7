package quantize

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/qvcompress/codebook"
	"github.com/hupe1980/qvcompress/diag"
	"github.com/hupe1980/qvcompress/distance"
	"github.com/hupe1980/qvcompress/feature"
	"github.com/hupe1980/qvcompress/internal/kmeans"
	"golang.org/x/sync/errgroup"
)

// Index encodings bound the codebook size.
const (
	// MaxGroupCodes fits the unsigned 8-bit VQ column.
	MaxGroupCodes = 256
	// MaxRecordCodes fits one printable Phred+33 character.
	MaxRecordCodes = feature.MaxPrintableQV + 1
)

// ErrTooManyCodes is returned when the codebook cannot be indexed by the
// target store's encoding.
var ErrTooManyCodes = errors.New("quantize: codebook has too many codes for the index encoding")

// minRowsPerWorker keeps tiny chunks on one goroutine.
const minRowsPerWorker = 1024

// Quantizer assigns rows to the nearest codebook entry. The scale is fixed by
// the first non-empty matrix passed to Assign; a Quantizer therefore belongs
// to one run and is not safe for concurrent use.
type Quantizer struct {
	cb     *codebook.Codebook
	schema feature.Schema
	opts   options

	scale feature.Scale
	codes *feature.Matrix
}

// New creates a quantizer for cb.
func New(cb *codebook.Codebook, opts ...Option) *Quantizer {
	o := options{
		sink:    diag.Discard{},
		metrics: diag.NoopMetrics{},
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.workers <= 0 {
		o.workers = o.resources.Workers()
	}
	return &Quantizer{cb: cb, schema: cb.Schema(), opts: o}
}

// Codebook returns the codebook the quantizer assigns against.
func (q *Quantizer) Codebook() *codebook.Codebook { return q.cb }

// Scale returns the shared scale, or nil before the first assignment.
func (q *Quantizer) Scale() feature.Scale { return q.scale.Clone() }

// Assign returns the nearest code for every row of m. m must be laid out in
// the codebook's schema.
func (q *Quantizer) Assign(ctx context.Context, m *feature.Matrix) ([]int, error) {
	if m.Cols() != q.schema.Len() {
		return nil, fmt.Errorf("%w: %d columns for %d channels", feature.ErrShape, m.Cols(), q.schema.Len())
	}
	if m.Rows() == 0 {
		return []int{}, nil
	}

	opts := feature.NormalizeOptions{Scale: q.scale}
	norm, err := feature.Normalize(m, q.schema, opts)
	if err != nil {
		return nil, err
	}
	if q.scale == nil {
		codes, err := feature.Normalize(q.cb.Centroids(), q.schema, feature.NormalizeOptions{Scale: norm.Scale})
		if err != nil {
			return nil, err
		}
		q.scale, q.codes = norm.Scale, codes.Matrix
	}

	return q.nearest(ctx, norm.Matrix)
}

// nearest runs an exhaustive search; rows are split into contiguous ranges
// so the result matches the sequential order.
func (q *Quantizer) nearest(ctx context.Context, m *feature.Matrix) ([]int, error) {
	n, dim := m.Dims()
	index := make([]int, n)
	codes := q.codes.Data()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	workers := min(q.opts.workers, max(1, n/minRowsPerWorker))
	if workers <= 1 {
		for i := 0; i < n; i++ {
			index[i] = kmeans.Nearest(m.Row(i), codes, dim, distance.SquaredL2)
		}
		return index, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	step := (n + workers - 1) / workers
	for start := 0; start < n; start += step {
		end := min(start+step, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%minRowsPerWorker == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				index[i] = kmeans.Nearest(m.Row(i), codes, dim, distance.SquaredL2)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return index, nil
}
