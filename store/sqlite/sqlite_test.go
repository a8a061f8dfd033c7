package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/qvcompress/feature"
	"github.com/hupe1980/qvcompress/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schema = feature.Schema{feature.DeletionQV, feature.InsertionQV, feature.MergeQV}

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reads.qvdb")
	s, err := Create(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.AppendGroup(ctx, "/ref1/a", schema, feature.MatrixFromRows([][]float64{
		{1, 10, 100},
		{2, 11, 100},
		{3, 12, 0},
		{4, 13, 5},
	})))
	require.NoError(t, s.AppendGroup(ctx, "/ref1/b", feature.Schema{feature.DeletionQV, feature.InsertionQV}, feature.MatrixFromRows([][]float64{
		{7, 20},
		{8, 21},
	})))
	return s, path
}

func TestStore_Read(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	assert.Equal(t, store.GroupOriented, s.Kind())

	groups, err := s.Groups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/ref1/a", "/ref1/b"}, groups)

	cols, err := s.Columns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{feature.DeletionQV, feature.InsertionQV, feature.MergeQV}, cols)

	n, err := s.RowCount(ctx, "/ref1/a", schema)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	m, err := s.ReadColumns(ctx, "/ref1/a", feature.Schema{feature.MergeQV, feature.DeletionQV}, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 2}, m.Row(0))
	assert.Equal(t, []float64{0, 3}, m.Row(1))

	missing, err := s.MissingColumns(ctx, "/ref1/b", schema)
	require.NoError(t, err)
	assert.Equal(t, []string{feature.MergeQV}, missing)

	_, err = s.ReadColumns(ctx, "/ref1/b", schema, 0, 1)
	var mfe *store.MissingFeatureError
	assert.ErrorAs(t, err, &mfe)

	_, err = s.RowCount(ctx, "/nope", schema)
	assert.ErrorIs(t, err, store.ErrGroupNotFound)

	_, err = s.ReadColumns(ctx, "/ref1/a", schema, 2, 5)
	assert.ErrorIs(t, err, store.ErrInvalidRange)
}

func TestStore_WriteIndexAndFeatures(t *testing.T) {
	ctx := context.Background()
	s, path := newStore(t)

	require.NoError(t, s.WriteIndex(ctx, "/ref1/a", 0, 2, []int{3, 255}))
	require.NoError(t, s.WriteIndex(ctx, "/ref1/a", 2, 4, []int{0, 1}))
	assert.Error(t, s.WriteIndex(ctx, "/ref1/a", 0, 1, []int{256}))
	assert.ErrorIs(t, s.WriteIndex(ctx, "/ref1/a", 0, 2, []int{1}), store.ErrInvalidRange)

	vq, err := s.ReadColumns(ctx, "/ref1/a", feature.Schema{store.IndexColumn}, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 255, 0, 1}, vq.Data())

	// The index column is written per group.
	missing, err := s.MissingColumns(ctx, "/ref1/b", feature.Schema{store.IndexColumn})
	require.NoError(t, err)
	assert.Equal(t, []string{store.IndexColumn}, missing)

	cols, err := s.Columns(ctx)
	require.NoError(t, err)
	assert.NotContains(t, cols, store.IndexColumn)

	w := feature.MatrixFromRows([][]float64{{9, 90}})
	require.NoError(t, s.WriteFeatures(ctx, "/ref1/b", feature.Schema{feature.InsertionQV, feature.DeletionQV}, 1, 2, w))
	require.NoError(t, s.Close())

	// Values survive reopening.
	ro, err := Open(ctx, path, WithReadOnly())
	require.NoError(t, err)
	defer ro.Close()

	m, err := ro.ReadColumns(ctx, "/ref1/b", feature.Schema{feature.DeletionQV, feature.InsertionQV}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 20, 90, 9}, m.Data())

	assert.ErrorIs(t, ro.WriteIndex(ctx, "/ref1/b", 0, 1, []int{0}), store.ErrReadOnly)
}

func TestStore_ChunkSource(t *testing.T) {
	s, _ := newStore(t)

	src, err := store.NewChunkSource(s, feature.Schema{feature.DeletionQV, feature.InsertionQV}, 3)
	require.NoError(t, err)

	var rows []float64
	for ch, err := range src.All(context.Background()) {
		require.NoError(t, err)
		rows = append(rows, ch.Data.Col(0)...)
	}
	assert.Equal(t, []float64{1, 2, 3, 4, 7, 8}, rows)
}

func TestCreate_Exists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exists.qvdb")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := Create(context.Background(), path)
	assert.ErrorIs(t, err, os.ErrExist)
}

func TestAppendGroup_Duplicate(t *testing.T) {
	s, _ := newStore(t)
	err := s.AppendGroup(context.Background(), "/ref1/a", schema, feature.NewMatrix(1, 3))
	assert.Error(t, err)

	n, err := s.RowCount(context.Background(), "/ref1/a", schema)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
