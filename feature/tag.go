package feature

// tagCodes maps the raw ASCII symbol of a tag channel to an equidistant code.
// Raw encodings put A (65) and C (67) next to each other, which would let a
// centroid land on B; the remap removes that false adjacency. It still favors
// the middle symbol (G).
var tagCodes = [...]struct {
	raw  float64
	code float64
}{
	{'-', 0},
	{'A', 1},
	{'C', 2},
	{'G', 3},
	{'N', 4},
	{'T', 5},
}

// TagSymbols lists the raw symbols the remap knows about, in code order.
const TagSymbols = "-ACGNT"

// RemapTag returns the contiguous code for a raw tag symbol. Unknown values
// pass through unchanged.
func RemapTag(raw float64) float64 {
	for _, tc := range tagCodes {
		if raw == tc.raw {
			return tc.code
		}
	}
	return raw
}

// UnmapTag is the inverse of RemapTag for the six defined codes.
func UnmapTag(code float64) float64 {
	for _, tc := range tagCodes {
		if code == tc.code {
			return tc.raw
		}
	}
	return code
}
