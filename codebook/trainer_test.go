package codebook

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/hupe1980/qvcompress/diag"
	"github.com/hupe1980/qvcompress/feature"
	"github.com/hupe1980/qvcompress/resource"
	"github.com/hupe1980/qvcompress/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clusterMeans are raw (DeletionQV, DeletionTag, InsertionQV, MergeQV, SubstitutionQV) centers.
var clusterMeans = [][]float64{
	{5, 'A', 10, 5, 8},
	{20, 'C', 25, 10, 20},
	{12, 'G', 40, 20, 3},
	{30, 'T', 15, 25, 35},
}

// syntheticStore builds rows cycling through clusterMeans with +-1 jitter on
// the quality channels.
func syntheticStore(t *testing.T, rows int) *store.MemoryStore {
	t.Helper()
	m := feature.NewMatrix(rows, feature.QuiverFeatures.Len())
	for i := 0; i < rows; i++ {
		mean := clusterMeans[i%len(clusterMeans)]
		for j, v := range mean {
			if j != 1 {
				v += float64((i/len(clusterMeans)+j)%3 - 1)
			}
			m.Set(i, j, v)
		}
	}

	s := store.NewMemoryStore("synthetic")
	half := rows / 2
	require.NoError(t, s.AddGroup("/ref/a", feature.QuiverFeatures, m.Slice(0, half)))
	require.NoError(t, s.AddGroup("/ref/b", feature.QuiverFeatures, m.Slice(half, rows)))
	return s
}

func newSource(t *testing.T, s store.GroupStore, chunkSize int) *store.ChunkSource {
	t.Helper()
	src, err := store.NewChunkSource(s, feature.QuiverFeatures, chunkSize)
	require.NoError(t, err)
	return src
}

type warning struct {
	code  string
	attrs map[string]int64
}

func recordingSink(out *[]warning) diag.Sink {
	return diag.SinkFunc(func(_ context.Context, code string, attrs ...slog.Attr) {
		w := warning{code: code, attrs: map[string]int64{}}
		for _, a := range attrs {
			w.attrs[a.Key] = a.Value.Int64()
		}
		*out = append(*out, w)
	})
}

func TestTrain_RecoversClusterMeans(t *testing.T) {
	s := syntheticStore(t, 1000)

	res, err := Train(context.Background(), newSource(t, s, 128), feature.QuiverFeatures, 4, 1000, WithSeed(7))
	require.NoError(t, err)
	require.Nil(t, res.Warning)
	assert.Equal(t, 1000, res.Observations)
	assert.Zero(t, res.Dropped)
	assert.Equal(t, 4, res.Codebook.Len())

	for _, want := range clusterMeans {
		best, bestDist := -1, math.Inf(1)
		for i := 0; i < res.Codebook.Len(); i++ {
			code := res.Codebook.Code(i)
			d := 0.0
			for j := range code {
				d += (code[j] - want[j]) * (code[j] - want[j])
			}
			if d < bestDist {
				best, bestDist = i, d
			}
		}
		code := res.Codebook.Code(best)
		for j := range want {
			assert.InDelta(t, want[j], code[j], 1, "cluster %v channel %s", want, feature.QuiverFeatures[j])
		}
		assert.Equal(t, want[1], code[1], "tag channel is reconstructed exactly")
	}
}

func TestTrain_Deterministic(t *testing.T) {
	s := syntheticStore(t, 400)

	a, err := Train(context.Background(), newSource(t, s, 64), feature.QuiverFeatures, 3, 400, WithSeed(3), WithInit(InitRandom))
	require.NoError(t, err)
	b, err := Train(context.Background(), newSource(t, s, 64), feature.QuiverFeatures, 3, 400, WithSeed(3), WithInit(InitRandom))
	require.NoError(t, err)

	assert.Equal(t, a.Codebook.Rows(), b.Codebook.Rows())
	assert.Equal(t, a.Scale, b.Scale)
}

func TestTrain_PartialTrainingWarning(t *testing.T) {
	s := syntheticStore(t, 100)

	var warnings []warning
	metrics := &countingMetrics{}
	res, err := Train(context.Background(), newSource(t, s, 30), feature.QuiverFeatures, 2, 500,
		WithSink(recordingSink(&warnings)), WithMetrics(metrics))
	require.NoError(t, err)

	assert.Equal(t, 100, res.Observations)
	require.NotNil(t, res.Warning)
	assert.Equal(t, PartialTrainingWarning{Observed: 100, Requested: 500}, *res.Warning)

	require.Len(t, warnings, 1)
	assert.Equal(t, diag.CodePartialTraining, warnings[0].code)
	assert.Equal(t, int64(100), warnings[0].attrs["observed"])
	assert.Equal(t, int64(500), warnings[0].attrs["requested"])

	assert.Equal(t, 1, metrics.trainings)
	assert.Equal(t, 100, metrics.rows)
}

func TestTrain_StopsAtNumObservations(t *testing.T) {
	s := syntheticStore(t, 100)

	var warnings []warning
	res, err := Train(context.Background(), newSource(t, s, 32), feature.QuiverFeatures, 2, 50, WithSink(recordingSink(&warnings)))
	require.NoError(t, err)
	assert.Equal(t, 50, res.Observations)
	assert.Nil(t, res.Warning)
	assert.Empty(t, warnings)
}

func TestTrain_DropsSentinelRows(t *testing.T) {
	m := feature.MatrixFromRows([][]float64{
		{5, 'A', 0, 5, 8},
		{5, 'A', 10, 5, 8},
		{20, 'C', 255, 10, 20},
		{20, 'C', 25, 10, 20},
	})
	s := store.NewMemoryStore("sentinel")
	require.NoError(t, s.AddGroup("/g", feature.QuiverFeatures, m))

	res, err := Train(context.Background(), newSource(t, s, 10), feature.QuiverFeatures, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Observations)
	assert.Equal(t, 2, res.Dropped)

	_, err = Train(context.Background(), newSource(t, s, 10), feature.QuiverFeatures, 3, 4)
	var dce *DegenerateClusterError
	require.ErrorAs(t, err, &dce)
	assert.Equal(t, DegenerateClusterError{Clusters: 3, Rows: 2}, *dce)
}

func TestTrain_InsufficientData(t *testing.T) {
	t.Run("EmptyStore", func(t *testing.T) {
		s := store.NewMemoryStore("empty")
		require.NoError(t, s.AddGroup("/g", feature.QuiverFeatures, feature.NewMatrix(0, 5)))

		_, err := Train(context.Background(), newSource(t, s, 10), feature.QuiverFeatures, 1, 10)
		var ide *InsufficientDataError
		require.ErrorAs(t, err, &ide)
		assert.Equal(t, 10, ide.Requested)
	})

	t.Run("OnlySentinelRows", func(t *testing.T) {
		m := feature.MatrixFromRows([][]float64{{5, 'A', 0, 5, 8}, {5, 'A', 255, 5, 8}})
		s := store.NewMemoryStore("sentinels")
		require.NoError(t, s.AddGroup("/g", feature.QuiverFeatures, m))

		_, err := Train(context.Background(), newSource(t, s, 10), feature.QuiverFeatures, 1, 10)
		var ide *InsufficientDataError
		require.ErrorAs(t, err, &ide)
		assert.Equal(t, 2, ide.Dropped)
	})
}

func TestTrain_MissingFeatures(t *testing.T) {
	s := store.NewMemoryStore("partial")
	schema := feature.Schema{feature.DeletionQV, feature.InsertionQV}
	require.NoError(t, s.AddGroup("/g", schema, feature.NewMatrix(3, 2)))

	_, err := Train(context.Background(), newSource(t, s, 10), feature.QuiverFeatures, 1, 10)
	var mfe *store.MissingFeatureError
	require.ErrorAs(t, err, &mfe)
	assert.Equal(t, []string{feature.DeletionTag, feature.MergeQV, feature.SubstitutionQV}, mfe.Missing)
}

func TestTrain_SchemaMismatch(t *testing.T) {
	s := syntheticStore(t, 20)
	src := newSource(t, s, 10)

	_, err := Train(context.Background(), src, feature.Schema{feature.DeletionQV}, 1, 10)
	var sme *feature.SchemaMismatchError
	assert.ErrorAs(t, err, &sme)
}

func TestTrain_InvalidArguments(t *testing.T) {
	s := syntheticStore(t, 20)

	_, err := Train(context.Background(), newSource(t, s, 10), feature.QuiverFeatures, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidNumClusters)

	_, err = Train(context.Background(), newSource(t, s, 10), feature.QuiverFeatures, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidNumObservations)
}

func TestTrain_MemoryLimit(t *testing.T) {
	s := syntheticStore(t, 20)
	rc := resource.NewController(resource.Config{MemoryLimitBytes: resource.MatrixBytes(10, 5)})

	_, err := Train(context.Background(), newSource(t, s, 10), feature.QuiverFeatures, 1, 20, WithResources(rc))
	var mle *resource.MemoryLimitError
	require.ErrorAs(t, err, &mle)

	res, err := Train(context.Background(), newSource(t, s, 10), feature.QuiverFeatures, 1, 10, WithResources(rc))
	require.NoError(t, err)
	assert.Equal(t, 10, res.Observations)
	assert.Zero(t, rc.MemoryUsage())
}

type countingMetrics struct {
	diag.NoopMetrics
	trainings int
	rows      int
}

func (m *countingMetrics) RecordTraining(rows, _, _ int, _ time.Duration) {
	m.trainings++
	m.rows = rows
}
