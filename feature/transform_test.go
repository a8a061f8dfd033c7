package feature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiverRows() [][]float64 {
	// DeletionQV, DeletionTag, InsertionQV, MergeQV, SubstitutionQV
	return [][]float64{
		{2, 'A', 3, 100, 0},
		{7, 'C', 1, 12, 2},
		{4, 'N', 0, 14, 5}, // skip
		{9, 'T', 255, 5, 1}, // no-call
		{5, 'G', 8, 29, 3},
		{3, '-', 11, 30, 9},
	}
}

func TestNormalize_DropsSentinelRows(t *testing.T) {
	m := MatrixFromRows(quiverRows())

	n, err := Normalize(m, QuiverFeatures, NormalizeOptions{DropSentinelRows: true})
	require.NoError(t, err)

	assert.Equal(t, 4, n.Matrix.Rows())
	assert.True(t, n.Dropped.Contains(2))
	assert.True(t, n.Dropped.Contains(3))
	assert.Equal(t, uint64(2), n.Dropped.GetCardinality())
	assert.Len(t, n.Scale, QuiverFeatures.Len())

	// Input is untouched.
	assert.Equal(t, 6, m.Rows())
	assert.Equal(t, float64('A'), m.At(0, 1))
}

func TestNormalize_KeepsRowsWithoutDrop(t *testing.T) {
	m := MatrixFromRows(quiverRows())

	n, err := Normalize(m, QuiverFeatures, NormalizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, m.Rows(), n.Matrix.Rows())
	assert.True(t, n.Dropped.IsEmpty())
}

func TestNormalize_TagRemapAndMergeClamp(t *testing.T) {
	m := MatrixFromRows(quiverRows())
	unit := Scale{1, 1, 1, 1, 1}

	n, err := Normalize(m, QuiverFeatures, NormalizeOptions{Scale: unit})
	require.NoError(t, err)

	tags := n.Matrix.Col(1)
	assert.Equal(t, []float64{1, 2, 4, 5, 3, 0}, tags)

	merge := n.Matrix.Col(3)
	assert.Equal(t, []float64{30, 12, 14, 5, 29, 30}, merge)
}

func TestNormalize_ConstantColumnIsUnscaled(t *testing.T) {
	m := MatrixFromRows([][]float64{
		{7, 1},
		{7, 2},
		{7, 3},
	})
	schema := Schema{DeletionQV, SubstitutionQV}

	n, err := Normalize(m, schema, NormalizeOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1.0, n.Scale[0])
	for i := 0; i < n.Matrix.Rows(); i++ {
		for j := 0; j < n.Matrix.Cols(); j++ {
			v := n.Matrix.At(i, j)
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
		assert.Equal(t, 7.0, n.Matrix.At(i, 0))
	}
}

func TestNormalize_SuppliedScaleZeroEntries(t *testing.T) {
	m := MatrixFromRows([][]float64{{4, 6}})
	n, err := Normalize(m, Schema{DeletionQV, SubstitutionQV}, NormalizeOptions{Scale: Scale{0, 2}})
	require.NoError(t, err)
	assert.Equal(t, Scale{1, 2}, n.Scale)
	assert.Equal(t, []float64{4, 3}, n.Matrix.Row(0))
}

func TestNormalize_ShapeErrors(t *testing.T) {
	m := MatrixFromRows([][]float64{{1, 2}})

	_, err := Normalize(m, QuiverFeatures, NormalizeOptions{})
	assert.ErrorIs(t, err, ErrShape)

	_, err = Normalize(m, Schema{DeletionQV, InsertionQV}, NormalizeOptions{Scale: Scale{1}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestDenormalize_RoundTrip(t *testing.T) {
	rows := [][]float64{
		{2, 'A', 3, 12, 0},
		{7, 'C', 1, 12, 2},
		{4, 'N', 6, 14, 5},
		{9, 'T', 2, 5, 1},
		{5, 'G', 8, 29, 3},
		{3, '-', 11, 20, 9},
	}
	m := MatrixFromRows(rows)

	n, err := Normalize(m, QuiverFeatures, NormalizeOptions{})
	require.NoError(t, err)

	raw, err := Denormalize(n.Matrix, QuiverFeatures, n.Scale)
	require.NoError(t, err)

	for i, row := range rows {
		assert.Equal(t, row, raw.Row(i), "row %d", i)
	}
}

func TestDenormalize_ClampsIntoByteRange(t *testing.T) {
	m := MatrixFromRows([][]float64{{-3, 400}})
	raw, err := Denormalize(m, Schema{DeletionQV, InsertionQV}, Scale{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 255}, raw.Row(0))
}

func TestTagRemapInverts(t *testing.T) {
	for _, sym := range TagSymbols {
		assert.Equal(t, float64(sym), UnmapTag(RemapTag(float64(sym))))
	}
	assert.Equal(t, 66.0, RemapTag(66))
}

func TestStdDev_Population(t *testing.T) {
	m := MatrixFromRows([][]float64{{1}, {3}})
	assert.InDelta(t, 1.0, StdDev(m)[0], 1e-12)

	empty := NewMatrix(0, 3)
	assert.Equal(t, Scale{1, 1, 1}, StdDev(empty))
}
