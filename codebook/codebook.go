package codebook

import (
	"fmt"

	"github.com/hupe1980/qvcompress/feature"
)

// Codebook is an immutable schema plus K raw-domain centroids.
type Codebook struct {
	schema    feature.Schema
	centroids *feature.Matrix
}

// New creates a codebook. centroids must have one column per schema channel
// and at least one row. Both arguments are copied.
func New(schema feature.Schema, centroids *feature.Matrix) (*Codebook, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if centroids == nil || centroids.Rows() == 0 {
		return nil, ErrEmpty
	}
	if centroids.Cols() != schema.Len() {
		return nil, fmt.Errorf("%w: %d centroid columns for %d channels", feature.ErrShape, centroids.Cols(), schema.Len())
	}
	return &Codebook{schema: schema.Clone(), centroids: centroids.Clone()}, nil
}

// Schema returns the channels the codebook was trained on.
func (c *Codebook) Schema() feature.Schema { return c.schema.Clone() }

// Len returns the number of codes.
func (c *Codebook) Len() int { return c.centroids.Rows() }

// Centroids returns a copy of the raw centroid matrix.
func (c *Codebook) Centroids() *feature.Matrix { return c.centroids.Clone() }

// Code returns a copy of centroid i.
func (c *Codebook) Code(i int) []float64 {
	return append([]float64(nil), c.centroids.Row(i)...)
}

// Reconstruct maps every index to its raw centroid row.
func (c *Codebook) Reconstruct(index []int) (*feature.Matrix, error) {
	out := feature.NewMatrix(len(index), c.schema.Len())
	for i, code := range index {
		if code < 0 || code >= c.Len() {
			return nil, fmt.Errorf("codebook: code %d out of range [0,%d)", code, c.Len())
		}
		copy(out.Row(i), c.centroids.Row(code))
	}
	return out, nil
}

// Rows returns the centroids as nested slices.
func (c *Codebook) Rows() [][]float64 {
	rows := make([][]float64, c.Len())
	for i := range rows {
		rows[i] = c.Code(i)
	}
	return rows
}
