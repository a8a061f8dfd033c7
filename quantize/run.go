package quantize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/qvcompress/diag"
	"github.com/hupe1980/qvcompress/feature"
	"github.com/hupe1980/qvcompress/store"
)

// ChunkReader yields chunks until io.EOF. *store.ChunkSource implements it.
type ChunkReader interface {
	Next(ctx context.Context) (store.Chunk, error)
}

// Stats summarizes a run.
type Stats struct {
	Chunks  int
	Rows    int
	Records int
}

// RunGroups assigns every chunk of src and writes the index column, plus the
// reconstructed features when overwriting, to dst. Chunks are written as they
// are assigned; an error leaves earlier chunks written.
func (q *Quantizer) RunGroups(ctx context.Context, src ChunkReader, dst store.GroupStore) (*Stats, error) {
	if q.cb.Len() > MaxGroupCodes {
		return nil, fmt.Errorf("%w: %d codes, VQ column holds %d", ErrTooManyCodes, q.cb.Len(), MaxGroupCodes)
	}
	if q.opts.rle {
		q.opts.sink.Warn(ctx, diag.CodeRLEUnsupported, slog.String("store", dst.Name()))
	}

	stats := &Stats{}
	for {
		ch, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}

		start := time.Now()
		index, err := q.assignChunk(ctx, ch)
		q.opts.metrics.RecordChunk(ch.Rows(), time.Since(start), err)
		if err != nil {
			return stats, err
		}

		start = time.Now()
		err = q.writeGroupChunk(ctx, dst, ch, index)
		q.opts.metrics.RecordWrite(ch.Rows(), time.Since(start), err)
		if err != nil {
			return stats, err
		}

		stats.Chunks++
		stats.Rows += ch.Rows()
	}
}

func (q *Quantizer) assignChunk(ctx context.Context, ch store.Chunk) ([]int, error) {
	if err := feature.CheckSchema(q.schema, ch.Schema); err != nil {
		return nil, err
	}
	return q.Assign(ctx, ch.Data)
}

func (q *Quantizer) writeGroupChunk(ctx context.Context, dst store.GroupStore, ch store.Chunk, index []int) error {
	if err := q.opts.resources.AcquireWrite(ctx, ch.Rows()); err != nil {
		return err
	}
	if err := dst.WriteIndex(ctx, ch.Locator, ch.Start, ch.End, index); err != nil {
		return fmt.Errorf("write index %s [%d,%d): %w", ch.Locator, ch.Start, ch.End, err)
	}
	if !q.opts.overwrite {
		return nil
	}
	recon, err := q.cb.Reconstruct(index)
	if err != nil {
		return err
	}
	if err := dst.WriteFeatures(ctx, ch.Locator, q.schema, ch.Start, ch.End, recon); err != nil {
		return fmt.Errorf("write features %s [%d,%d): %w", ch.Locator, ch.Start, ch.End, err)
	}
	return nil
}

// pendingRecord collects the indices of one record across chunks.
type pendingRecord struct {
	rec   *store.Record
	index []int
}

// RunRecords rewrites the records of in to outPath. Every chunk must carry
// its source record; a record is written once all of its bases are assigned.
func (q *Quantizer) RunRecords(ctx context.Context, src ChunkReader, in store.RecordStore, outPath string) (stats *Stats, err error) {
	if q.cb.Len() > MaxRecordCodes {
		return nil, fmt.Errorf("%w: %d codes, QUAL holds %d", ErrTooManyCodes, q.cb.Len(), MaxRecordCodes)
	}

	header, err := q.header(in.Header())
	if err != nil {
		return nil, err
	}

	// The first pull validates the whole store; fail before the output exists.
	first, err := src.Next(ctx)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	buffered := err == nil
	next := func() (store.Chunk, error) {
		if buffered {
			buffered = false
			return first, nil
		}
		return src.Next(ctx)
	}

	w, err := in.CreateWriter(ctx, outPath, header)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()

	stats = &Stats{}
	var pending *pendingRecord
	for {
		ch, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		if ch.Record == nil {
			return stats, fmt.Errorf("quantize: chunk %s carries no record", ch.Locator)
		}

		start := time.Now()
		index, err := q.assignChunk(ctx, ch)
		q.opts.metrics.RecordChunk(ch.Rows(), time.Since(start), err)
		if err != nil {
			return stats, err
		}
		stats.Chunks++
		stats.Rows += ch.Rows()

		if pending == nil || pending.rec != ch.Record {
			if pending != nil {
				return stats, fmt.Errorf("quantize: record %s ended after %d of its bases", pending.rec.Name(), len(pending.index))
			}
			pending = &pendingRecord{rec: ch.Record, index: make([]int, 0, ch.GroupRows)}
		}
		pending.index = append(pending.index, index...)

		if len(pending.index) >= ch.GroupRows {
			if err := q.writeRecord(ctx, w, pending); err != nil {
				return stats, err
			}
			stats.Records++
			pending = nil
		}
	}
	if pending != nil {
		return stats, fmt.Errorf("quantize: record %s ended after %d of its bases", pending.rec.Name(), len(pending.index))
	}
	return stats, nil
}

// header embeds the codebook as two @CO lines and appends the @PG line.
func (q *Quantizer) header(in *store.Header) (*store.Header, error) {
	h := in.Clone()
	centroids, features, err := q.cb.EncodeJSON(q.opts.codec)
	if err != nil {
		return nil, err
	}
	h.AddComment(centroids)
	h.AddComment(features)
	if p := q.opts.program; p.ID != "" {
		h.AddProgram(p.ID, p.Name, p.Version, p.CmdLine)
	}
	return h, nil
}

func (q *Quantizer) writeRecord(ctx context.Context, w store.RecordWriter, p *pendingRecord) error {
	rec := p.rec.Clone()

	qual := "*"
	if len(p.index) > 0 {
		s, err := feature.EncodeQVs(p.index)
		if err != nil {
			return err
		}
		qual = s
	}
	rec.SetQual(qual)

	deletionTag := store.FeatureTags[feature.DeletionTag]
	if q.opts.rle {
		if t, ok := rec.Tag(deletionTag); ok {
			rec.SetTag(store.Tag{Name: store.RunLengthTag, Type: 'Z', Value: RunLengthEncode(t.Value)})
		}
	}

	if q.opts.overwrite {
		recon, err := q.cb.Reconstruct(p.index)
		if err != nil {
			return err
		}
		if err := rec.SetFeatures(q.schema, recon); err != nil {
			return err
		}
	} else {
		strip := make([]string, 0, q.schema.Len()+1)
		for _, name := range q.schema {
			strip = append(strip, store.FeatureTags[name])
		}
		if q.opts.rle {
			strip = append(strip, deletionTag)
		}
		rec.RemoveTags(strip...)
	}

	if err := q.opts.resources.AcquireWrite(ctx, len(p.index)); err != nil {
		return err
	}
	start := time.Now()
	err := w.Write(ctx, rec)
	q.opts.metrics.RecordWrite(len(p.index), time.Since(start), err)
	return err
}

// Run dispatches on the store kind. outPath is only used for record-oriented
// stores.
func (q *Quantizer) Run(ctx context.Context, src ChunkReader, s store.Store, outPath string) (*Stats, error) {
	switch st := s.(type) {
	case store.GroupStore:
		return q.RunGroups(ctx, src, st)
	case store.RecordStore:
		return q.RunRecords(ctx, src, st, outPath)
	default:
		return nil, &store.UnsupportedStoreError{Path: s.Name(), Reason: "store is neither group nor record oriented"}
	}
}
