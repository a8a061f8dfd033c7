// Package sam implements a record-oriented store on SAM text files, plain or
// compressed with gzip (.sam.gz) or zstd (.sam.zst).
//
// Feature channels are carried as per-record string tags (see
// store.FeatureTags). The input is never modified: a quantization run
// rewrites every record into a new file created with CreateWriter.
package sam

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"
	"strings"

	"github.com/hupe1980/qvcompress/feature"
	"github.com/hupe1980/qvcompress/resource"
	"github.com/hupe1980/qvcompress/store"
)

// maxLineSize bounds a single line. Long reads carry six tags of read length.
const maxLineSize = 64 << 20

// Option configures a Store.
type Option func(*Store)

// WithResources throttles output writes by the controller's IO limit.
func WithResources(rc *resource.Controller) Option {
	return func(s *Store) { s.rc = rc }
}

// Store is a read-only SAM input.
type Store struct {
	path   string
	header *store.Header
	rc     *resource.Controller
}

var _ store.RecordStore = (*Store)(nil)

// Open reads the header of the SAM file at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{path: path}
	for _, fn := range opts {
		fn(s)
	}

	r, err := s.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	h := &store.Header{}
	sc := newScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := sc.Text()
		if !strings.HasPrefix(line, "@") {
			break
		}
		h.Lines = append(h.Lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("sam: read header of %s: %w", path, err)
	}
	s.header = h
	return s, nil
}

func (s *Store) open() (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("sam: %w", err)
	}
	r, err := newReader(f, CompressionOf(s.path))
	if err != nil {
		return nil, fmt.Errorf("sam: open %s: %w", s.path, err)
	}
	return r, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return sc
}

// Name implements store.Store.
func (s *Store) Name() string { return s.path }

// Kind implements store.Store.
func (s *Store) Kind() store.Kind { return store.RecordOriented }

// Columns reports the feature channels carried by the first record.
func (s *Store) Columns(ctx context.Context) ([]string, error) {
	for rec, err := range s.Records(ctx) {
		if err != nil {
			return nil, err
		}
		var cols []string
		for _, name := range append(feature.QuiverFeatures.Clone(), feature.SubstitutionTag) {
			if _, ok := rec.Tag(store.FeatureTags[name]); ok {
				cols = append(cols, name)
			}
		}
		return cols, nil
	}
	return nil, nil
}

// Header implements store.RecordStore.
func (s *Store) Header() *store.Header { return s.header.Clone() }

// Records implements store.RecordStore.
func (s *Store) Records(ctx context.Context) iter.Seq2[*store.Record, error] {
	return func(yield func(*store.Record, error) bool) {
		r, err := s.open()
		if err != nil {
			yield(nil, err)
			return
		}
		defer func() { _ = r.Close() }()

		sc := newScanner(r)
		lineNo := 0
		for sc.Scan() {
			lineNo++
			line := sc.Text()
			if line == "" || strings.HasPrefix(line, "@") {
				continue
			}
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			rec, err := ParseRecord(line)
			if err != nil {
				yield(nil, fmt.Errorf("%s:%d: %w", s.path, lineNo, err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(nil, fmt.Errorf("sam: read %s: %w", s.path, err))
		}
	}
}

// CreateWriter implements store.RecordStore. The output compression follows
// the suffix of path. Writing to the input path is rejected.
func (s *Store) CreateWriter(ctx context.Context, path string, header *store.Header) (store.RecordWriter, error) {
	if sameFile(s.path, path) {
		return nil, fmt.Errorf("sam: output %s would overwrite the input", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sam: %w", err)
	}

	var w io.Writer = f
	if s.rc != nil {
		w = resource.NewThrottledWriter(ctx, f, s.rc)
	}
	out, err := NewWriter(w, CompressionOf(path), header)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	out.file = f
	return out, nil
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

func sameFile(a, b string) bool {
	sa, err := os.Stat(a)
	if err != nil {
		return false
	}
	sb, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(sa, sb)
}

// Writer writes a header followed by records.
type Writer struct {
	file io.Closer
	zw   io.WriteCloser
	bw   *bufio.Writer
	err  error
}

// NewWriter writes header to w and returns a writer for the records.
// Close flushes the stream; w itself is not closed.
func NewWriter(w io.Writer, c Compression, header *store.Header) (*Writer, error) {
	zw, err := newCompressor(w, c)
	if err != nil {
		return nil, fmt.Errorf("sam: %w", err)
	}
	out := &Writer{zw: zw, bw: bufio.NewWriterSize(zw, 256*1024)}
	if header != nil {
		for _, line := range header.Lines {
			out.writeLine(line)
		}
	}
	return out, out.err
}

func (w *Writer) writeLine(line string) {
	if w.err != nil {
		return
	}
	if _, err := w.bw.WriteString(line); err != nil {
		w.err = err
		return
	}
	w.err = w.bw.WriteByte('\n')
}

// Write implements store.RecordWriter.
func (w *Writer) Write(ctx context.Context, rec *store.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.writeLine(FormatRecord(rec))
	if w.err != nil {
		return fmt.Errorf("sam: write %s: %w", rec.Name(), w.err)
	}
	return nil
}

// Close implements store.RecordWriter.
func (w *Writer) Close() error {
	errs := []error{w.err}
	if w.err == nil {
		errs = append(errs, w.bw.Flush())
	}
	errs = append(errs, w.zw.Close())
	if w.file != nil {
		errs = append(errs, w.file.Close())
	}
	return errors.Join(slices.DeleteFunc(errs, func(err error) bool { return err == nil })...)
}
