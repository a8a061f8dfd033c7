package quantize

import (
	"context"
	"iter"
	"log/slog"
	"testing"

	"github.com/hupe1980/qvcompress/codebook"
	"github.com/hupe1980/qvcompress/diag"
	"github.com/hupe1980/qvcompress/feature"
	"github.com/hupe1980/qvcompress/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiverStore(t *testing.T, groups ...int) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore("quiver")
	tags := []float64{'A', 'C', 'G', 'T', 'N', '-'}
	n := 0
	for gi, rows := range groups {
		m := feature.NewMatrix(rows, feature.QuiverFeatures.Len())
		for i := 0; i < rows; i++ {
			k := n + i
			m.Set(i, 0, float64(k%17))
			m.Set(i, 1, tags[k%len(tags)])
			m.Set(i, 2, float64(1+k%23))
			m.Set(i, 3, float64(k%2*100))
			m.Set(i, 4, float64(k%11))
		}
		n += rows
		require.NoError(t, s.AddGroup("/ref/g"+string(rune('0'+gi)), feature.QuiverFeatures, m))
	}
	return s
}

func chunks(t *testing.T, s store.Store, schema feature.Schema, size int) *store.ChunkSource {
	t.Helper()
	src, err := store.NewStoreChunkSource(s, schema, size)
	require.NoError(t, err)
	return src
}

func TestEndToEnd_GroupStore(t *testing.T) {
	ctx := context.Background()
	s := quiverStore(t, 60, 45, 30)

	trained, err := codebook.Train(ctx, chunks(t, s, feature.QuiverFeatures, 25), feature.QuiverFeatures, 2, 100)
	require.NoError(t, err)

	stats, err := New(trained.Codebook).RunGroups(ctx, chunks(t, s, trained.Codebook.Schema(), 25), s)
	require.NoError(t, err)
	assert.Equal(t, 135, stats.Rows)
	assert.Equal(t, 7, stats.Chunks)

	groups, err := s.Groups(ctx)
	require.NoError(t, err)
	total := 0
	for _, g := range groups {
		rows, err := s.RowCount(ctx, g, feature.QuiverFeatures)
		require.NoError(t, err)

		vq, ok := s.Column(g, store.IndexColumn)
		require.True(t, ok)
		require.Len(t, vq, rows)
		for _, v := range vq {
			assert.Contains(t, []float64{0, 1}, v)
		}
		total += len(vq)
	}
	assert.Equal(t, 135, total)
}

func TestRunGroups_Overwrite(t *testing.T) {
	ctx := context.Background()
	s := quiverStore(t, 20)
	cb := mustCodebook(t, feature.QuiverFeatures, [][]float64{
		{3, 'A', 5, 0, 2},
		{14, 'T', 20, 30, 9},
	})

	var warnings []string
	sink := diag.SinkFunc(func(_ context.Context, code string, _ ...slog.Attr) {
		warnings = append(warnings, code)
	})

	q := New(cb, WithOverwrite(true), WithRunLengthTag(true), WithSink(sink))
	_, err := q.RunGroups(ctx, chunks(t, s, feature.QuiverFeatures, 8), s)
	require.NoError(t, err)
	assert.Equal(t, []string{diag.CodeRLEUnsupported}, warnings)

	vq, _ := s.Column("/ref/g0", store.IndexColumn)
	m, err := s.ReadColumns(ctx, "/ref/g0", feature.QuiverFeatures, 0, 20)
	require.NoError(t, err)
	for i, code := range vq {
		assert.Equal(t, cb.Code(int(code)), m.Row(i))
	}
}

func TestRunGroups_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("TooManyCodes", func(t *testing.T) {
		s := quiverStore(t, 10)
		cb, err := codebook.New(qvSchema, feature.NewMatrix(MaxGroupCodes+1, qvSchema.Len()))
		require.NoError(t, err)

		_, err = New(cb).RunGroups(ctx, chunks(t, s, qvSchema, 5), s)
		assert.ErrorIs(t, err, ErrTooManyCodes)
	})

	t.Run("SchemaMismatch", func(t *testing.T) {
		s := quiverStore(t, 10)
		cb := mustCodebook(t, qvSchema, [][]float64{{1, 2, 3}})

		_, err := New(cb).RunGroups(ctx, chunks(t, s, feature.QuiverFeatures, 5), s)
		var sme *feature.SchemaMismatchError
		require.ErrorAs(t, err, &sme)

		_, written := s.Column("/ref/g0", store.IndexColumn)
		assert.False(t, written)
	})

	t.Run("MissingFeatures", func(t *testing.T) {
		s := store.NewMemoryStore("partial")
		require.NoError(t, s.AddGroup("/g", feature.Schema{feature.DeletionQV}, feature.NewMatrix(4, 1)))
		cb := mustCodebook(t, qvSchema, [][]float64{{1, 2, 3}})

		_, err := New(cb).RunGroups(ctx, chunks(t, s, qvSchema, 5), s)
		var mfe *store.MissingFeatureError
		require.ErrorAs(t, err, &mfe)
		assert.Equal(t, []string{feature.InsertionQV, feature.MergeQV}, mfe.Missing)
	})
}

type memRecordStore struct {
	header  *store.Header
	records []*store.Record
	out     *memRecordWriter
}

type memRecordWriter struct {
	path    string
	header  *store.Header
	records []*store.Record
	closed  bool
}

func (w *memRecordWriter) Write(_ context.Context, r *store.Record) error {
	w.records = append(w.records, r)
	return nil
}

func (w *memRecordWriter) Close() error {
	w.closed = true
	return nil
}

func (s *memRecordStore) Name() string                              { return "records.sam" }
func (s *memRecordStore) Kind() store.Kind                          { return store.RecordOriented }
func (s *memRecordStore) Columns(context.Context) ([]string, error) { return nil, nil }
func (s *memRecordStore) Close() error                              { return nil }
func (s *memRecordStore) Header() *store.Header                     { return s.header }

func (s *memRecordStore) Records(context.Context) iter.Seq2[*store.Record, error] {
	return func(yield func(*store.Record, error) bool) {
		for _, r := range s.records {
			if !yield(r.Clone(), nil) {
				return
			}
		}
	}
}

func (s *memRecordStore) CreateWriter(_ context.Context, path string, h *store.Header) (store.RecordWriter, error) {
	s.out = &memRecordWriter{path: path, header: h}
	return s.out, nil
}

func samRecord(name, dq, dt, iq, mq, sq string) *store.Record {
	fields := make([]string, store.NumFields)
	for i := range fields {
		fields[i] = "*"
	}
	fields[store.FieldQName] = name
	return &store.Record{
		Fields: fields,
		Tags: []store.Tag{
			{Name: "NM", Type: 'i', Value: "0"},
			{Name: "dq", Type: 'Z', Value: dq},
			{Name: "dt", Type: 'Z', Value: dt},
			{Name: "iq", Type: 'Z', Value: iq},
			{Name: "mq", Type: 'Z', Value: mq},
			{Name: "sq", Type: 'Z', Value: sq},
		},
	}
}

func recordStore() *memRecordStore {
	return &memRecordStore{
		header: &store.Header{Lines: []string{"@HD\tVN:1.6"}},
		records: []*store.Record{
			samRecord("r1", "$$..", "AANN", "&&00", "!!!!", "##--"),
			samRecord("r2", "", "", "", "", ""),
			samRecord("r3", "..$", "NNA", "00&", "!!!", "--#"),
		},
	}
}

var recordCodes = [][]float64{
	{3, 'A', 5, 0, 2},
	{13, 'N', 15, 0, 12},
}

func TestRunRecords(t *testing.T) {
	ctx := context.Background()
	in := recordStore()
	cb := mustCodebook(t, feature.QuiverFeatures, recordCodes)

	q := New(cb, WithRunLengthTag(true), WithProgram(Program{ID: "qvcompress.run1", Name: "qvcompress", CmdLine: "qvcompress encode"}))
	stats, err := q.RunRecords(ctx, chunks(t, in, feature.QuiverFeatures, 3), in, "out.sam")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 7, stats.Rows)

	out := in.out
	require.NotNil(t, out)
	assert.True(t, out.closed)
	assert.Equal(t, "out.sam", out.path)

	comments := out.header.Comments()
	require.Len(t, comments, 2)
	embedded, err := codebook.FromComments(nil, comments)
	require.NoError(t, err)
	assert.Equal(t, cb.Rows(), embedded.Rows())
	assert.Equal(t, "@PG\tID:qvcompress.run1\tPN:qvcompress\tCL:qvcompress encode", out.header.Lines[3])
	assert.Len(t, in.header.Lines, 1, "input header is not modified")

	require.Len(t, out.records, 3)
	r1 := out.records[0]
	assert.Equal(t, "!!\"\"", r1.Qual())
	dr, ok := r1.Tag(store.RunLengthTag)
	require.True(t, ok)
	assert.Equal(t, "2A2N", dr.Value)
	for _, tag := range []string{"dq", "dt", "iq", "mq", "sq"} {
		_, ok := r1.Tag(tag)
		assert.False(t, ok, tag)
	}
	_, ok = r1.Tag("NM")
	assert.True(t, ok)

	assert.Equal(t, "*", out.records[1].Qual())
	assert.Equal(t, "\"\"!", out.records[2].Qual())
}

func TestRunRecords_Overwrite(t *testing.T) {
	ctx := context.Background()
	in := recordStore()
	cb := mustCodebook(t, feature.QuiverFeatures, recordCodes)

	_, err := New(cb, WithOverwrite(true)).RunRecords(ctx, chunks(t, in, feature.QuiverFeatures, 2), in, "out.sam")
	require.NoError(t, err)

	r3 := in.out.records[2]
	dq, ok := r3.Tag("dq")
	require.True(t, ok)
	assert.Equal(t, "..$", dq.Value)
	dt, _ := r3.Tag("dt")
	assert.Equal(t, "NNA", dt.Value)
	_, ok = r3.Tag(store.RunLengthTag)
	assert.False(t, ok)
}

func TestRunRecords_TooManyCodes(t *testing.T) {
	in := recordStore()
	cb, err := codebook.New(feature.QuiverFeatures, feature.NewMatrix(MaxRecordCodes+1, feature.QuiverFeatures.Len()))
	require.NoError(t, err)

	_, err = New(cb).Run(context.Background(), chunks(t, in, feature.QuiverFeatures, 2), in, "out.sam")
	assert.ErrorIs(t, err, ErrTooManyCodes)
	assert.Nil(t, in.out)
}
