package codebook

import (
	"fmt"

	"github.com/hupe1980/qvcompress/codec"
	"github.com/hupe1980/qvcompress/feature"
)

// EncodeJSON returns the centroid rows and the feature names as two JSON
// documents, the form embedded in record-oriented store headers.
func (c *Codebook) EncodeJSON(cd codec.Codec) (centroids, features string, err error) {
	if cd == nil {
		cd = codec.Default
	}
	cb, err := cd.Marshal(c.Rows())
	if err != nil {
		return "", "", fmt.Errorf("codebook: encode centroids: %w", err)
	}
	fb, err := cd.Marshal([]string(c.schema))
	if err != nil {
		return "", "", fmt.Errorf("codebook: encode features: %w", err)
	}
	return string(cb), string(fb), nil
}

// DecodeJSON is the inverse of EncodeJSON.
func DecodeJSON(cd codec.Codec, centroids, features string) (*Codebook, error) {
	if cd == nil {
		cd = codec.Default
	}
	var rows [][]float64
	if err := cd.Unmarshal([]byte(centroids), &rows); err != nil {
		return nil, &FormatError{Reason: "centroids: " + err.Error()}
	}
	var names []string
	if err := cd.Unmarshal([]byte(features), &names); err != nil {
		return nil, &FormatError{Reason: "features: " + err.Error()}
	}
	for i, r := range rows {
		if len(r) != len(names) {
			return nil, &FormatError{Reason: fmt.Sprintf("centroid %d has %d values for %d features", i, len(r), len(names))}
		}
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	return New(feature.Schema(names), feature.MatrixFromRows(rows))
}

// FromComments finds an embedded codebook in header comment lines: a JSON
// centroid array immediately followed by a JSON feature name array.
func FromComments(cd codec.Codec, comments []string) (*Codebook, error) {
	for i := len(comments) - 2; i >= 0; i-- {
		cb, err := DecodeJSON(cd, comments[i], comments[i+1])
		if err == nil {
			return cb, nil
		}
	}
	return nil, &FormatError{Reason: "no embedded codebook in header"}
}
