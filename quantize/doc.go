// Package quantize assigns every observation of a store to its nearest
// codebook entry and writes the result back.
//
// All chunks of a run, and the codebook centroids, are normalized with the
// scale computed from the first non-empty chunk. Recomputing the scale per
// chunk would change the cluster geometry between chunks.
//
// Group-oriented stores receive the indices as the VQ column and, when
// overwriting is enabled, the reconstructed raw values. Record-oriented
// stores are rewritten: QUAL carries the Phred+33 coded index, the codebook is
// embedded in the header, and the encoded feature tags are stripped or
// replaced.
package quantize
