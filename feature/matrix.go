package feature

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense row-major matrix of observations. Rows are bases and
// columns are schema channels. Unlike mat.Dense it may have zero rows and it
// grows in place through Append. It satisfies mat.Matrix.
type Matrix struct {
	rows int
	cols int
	data []float64
}

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("feature: negative dimension %dx%d", rows, cols))
	}
	return &Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// NewMatrixFrom wraps data, which must hold rows*cols values, without copying.
func NewMatrixFrom(rows, cols int, data []float64) *Matrix {
	if len(data) != rows*cols {
		panic(fmt.Sprintf("feature: data length %d does not match %dx%d", len(data), rows, cols))
	}
	return &Matrix{rows: rows, cols: cols, data: data}
}

// MatrixFromRows copies a slice of equally sized rows.
func MatrixFromRows(rows [][]float64) *Matrix {
	if len(rows) == 0 {
		return NewMatrix(0, 0)
	}
	cols := len(rows[0])
	m := NewMatrix(len(rows), cols)
	for i, r := range rows {
		if len(r) != cols {
			panic(fmt.Sprintf("feature: row %d has %d columns, want %d", i, len(r), cols))
		}
		copy(m.data[i*cols:], r)
	}
	return m
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (int, int) { return m.rows, m.cols }

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// At returns the element at row i, column j.
func (m *Matrix) At(i, j int) float64 { return m.data[i*m.cols+j] }

// Set stores v at row i, column j.
func (m *Matrix) Set(i, j int, v float64) { m.data[i*m.cols+j] = v }

// Row returns a view of row i. Writes through the view modify m.
func (m *Matrix) Row(i int) []float64 { return m.data[i*m.cols : (i+1)*m.cols] }

// T returns the transpose view of m.
func (m *Matrix) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// Col returns a copy of column j.
func (m *Matrix) Col(j int) []float64 { return mat.Col(nil, j, m) }

// Data returns the backing row-major slice.
func (m *Matrix) Data() []float64 { return m.data }

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	return &Matrix{rows: m.rows, cols: m.cols, data: slices.Clone(m.data)}
}

// Slice returns a copy of rows [start, end).
func (m *Matrix) Slice(start, end int) *Matrix {
	if start < 0 || end > m.rows || start > end {
		panic(fmt.Sprintf("feature: row range [%d,%d) out of bounds for %d rows", start, end, m.rows))
	}
	return &Matrix{rows: end - start, cols: m.cols, data: slices.Clone(m.data[start*m.cols : end*m.cols])}
}

// Gather returns a new matrix made of the listed rows, in order.
func (m *Matrix) Gather(rows []int) *Matrix {
	out := NewMatrix(len(rows), m.cols)
	for i, r := range rows {
		copy(out.Row(i), m.Row(r))
	}
	return out
}

// Append adds the rows of o to m. A 0x0 matrix adopts the width of o.
func (m *Matrix) Append(o *Matrix) error {
	if m.rows == 0 && m.cols == 0 {
		m.cols = o.cols
	}
	if o.cols != m.cols {
		return fmt.Errorf("%w: appending %d columns to %d", ErrShape, o.cols, m.cols)
	}
	m.data = append(m.data, o.data...)
	m.rows += o.rows
	return nil
}
