// Package distance compares feature vectors in normalized space.
package distance

// Func measures the dissimilarity of two equal-length vectors.
type Func func(a, b []float64) float64

// SquaredL2 sums the squared coordinate differences. It ranks codes exactly
// like the Euclidean distance without the square root. The lengths are not
// checked; b must be at least as long as a.
func SquaredL2(a, b []float64) float64 {
	var sum float64
	for i, x := range a {
		d := x - b[i]
		sum += d * d
	}
	return sum
}
