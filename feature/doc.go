// Package feature defines the per-base feature model shared by training and
// quantization: the ordered channel Schema, the row-major Matrix of raw
// observations, and the normalization that maps raw quality values into the
// space where Euclidean distances are meaningful.
//
// Normalization and its inverse are pure: every call returns a new Matrix and
// never mutates its input.
//
//	n, _ := feature.Normalize(m, feature.QuiverFeatures, feature.NormalizeOptions{DropSentinelRows: true})
//	raw, _ := feature.Denormalize(n.Matrix, feature.QuiverFeatures, n.Scale)
package feature
