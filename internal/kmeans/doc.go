// Package kmeans implements k-means clustering for codebook training.
//
// Used by the codebook trainer to learn centroids in normalized feature space,
// and by the quantizer for exhaustive nearest-centroid assignment.
package kmeans
