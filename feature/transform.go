package feature

import (
	"fmt"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Reserved raw values of the sentinel column.
const (
	SkipValue   = 0   // base skipped by the aligner
	NoCallValue = 255 // deletion / no-call
)

// MergeClamp is the ceiling applied to MergeQV. Raw files use 100 to mean
// "not a merge", which would otherwise dominate distances.
const MergeClamp = 30

// Raw values live in an unsigned byte.
const (
	rawMin = 0
	rawMax = 255
)

// Scale holds one divisor per channel, normally the column standard
// deviation of the training data.
type Scale []float64

// Clone returns a copy of the scale.
func (s Scale) Clone() Scale { return slices.Clone(s) }

// sanitized replaces zero and non-finite entries with 1 so constant columns
// pass through unscaled.
func (s Scale) sanitized() Scale {
	out := make(Scale, len(s))
	for i, v := range s {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			v = 1
		}
		out[i] = v
	}
	return out
}

// NormalizeOptions controls Normalize.
type NormalizeOptions struct {
	// Scale, when non-nil, is used verbatim instead of being computed from
	// the matrix. Quantization passes the scale fixed by its first chunk.
	Scale Scale

	// DropSentinelRows removes rows whose sentinel column holds SkipValue or
	// NoCallValue.
	DropSentinelRows bool
}

// Normalized is the result of Normalize.
type Normalized struct {
	// Matrix is the clusterable matrix. It may have fewer rows than the input.
	Matrix *Matrix
	// Scale is the divisor applied to each column.
	Scale Scale
	// Dropped holds the input row indices removed as sentinel rows.
	Dropped *roaring.Bitmap
}

// Normalize maps a raw matrix into clusterable space: sentinel rows are
// optionally removed, tag symbols are remapped to contiguous codes, MergeQV is
// clamped, and every column is divided by its scale.
func Normalize(m *Matrix, schema Schema, opts NormalizeOptions) (*Normalized, error) {
	if m.Cols() != schema.Len() {
		return nil, fmt.Errorf("%w: %d columns for %d channels", ErrShape, m.Cols(), schema.Len())
	}

	out, dropped := m, roaring.New()
	if opts.DropSentinelRows {
		out, dropped = dropSentinelRows(m, schema.SentinelColumn())
	} else {
		out = m.Clone()
	}

	for _, j := range schema.TagColumns() {
		for i := 0; i < out.Rows(); i++ {
			out.Set(i, j, RemapTag(out.At(i, j)))
		}
	}

	if j := schema.Index(MergeQV); j >= 0 {
		for i := 0; i < out.Rows(); i++ {
			if out.At(i, j) >= MergeClamp {
				out.Set(i, j, MergeClamp)
			}
		}
	}

	scale := opts.Scale
	if scale == nil {
		scale = StdDev(out)
	} else if len(scale) != schema.Len() {
		return nil, fmt.Errorf("%w: scale has %d entries for %d channels", ErrShape, len(scale), schema.Len())
	}
	scale = scale.sanitized()

	for i := 0; i < out.Rows(); i++ {
		floats.Div(out.Row(i), scale)
	}

	return &Normalized{Matrix: out, Scale: scale, Dropped: dropped}, nil
}

// Denormalize maps a clusterable matrix back to raw values: columns are
// multiplied by scale, rounded into the byte range, and tag codes are mapped
// back to their symbols. It is only an approximate inverse of Normalize since
// dropped rows and clamped MergeQV values are not recoverable.
func Denormalize(m *Matrix, schema Schema, scale Scale) (*Matrix, error) {
	if m.Cols() != schema.Len() {
		return nil, fmt.Errorf("%w: %d columns for %d channels", ErrShape, m.Cols(), schema.Len())
	}
	if len(scale) != schema.Len() {
		return nil, fmt.Errorf("%w: scale has %d entries for %d channels", ErrShape, len(scale), schema.Len())
	}
	scale = scale.sanitized()

	out := m.Clone()
	data := out.Data()
	for i := 0; i < out.Rows(); i++ {
		floats.Mul(out.Row(i), scale)
	}
	for k, v := range data {
		data[k] = clampRaw(math.Round(v))
	}

	for _, j := range schema.TagColumns() {
		for i := 0; i < out.Rows(); i++ {
			out.Set(i, j, UnmapTag(out.At(i, j)))
		}
	}
	return out, nil
}

// StdDev returns the population standard deviation of every column. An
// empty matrix yields a scale of ones.
func StdDev(m *Matrix) Scale {
	scale := make(Scale, m.Cols())
	for j := range scale {
		if m.Rows() == 0 {
			scale[j] = 1
			continue
		}
		scale[j] = stat.PopStdDev(m.Col(j), nil)
	}
	return scale.sanitized()
}

func dropSentinelRows(m *Matrix, col int) (*Matrix, *roaring.Bitmap) {
	dropped := roaring.New()
	keep := make([]int, 0, m.Rows())
	for i := 0; i < m.Rows(); i++ {
		v := m.At(i, col)
		if v == SkipValue || v == NoCallValue {
			dropped.Add(uint32(i))
			continue
		}
		keep = append(keep, i)
	}
	return m.Gather(keep), dropped
}

func clampRaw(v float64) float64 {
	switch {
	case v < rawMin:
		return rawMin
	case v > rawMax:
		return rawMax
	default:
		return v
	}
}
