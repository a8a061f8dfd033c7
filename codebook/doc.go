// Package codebook holds trained codebooks, their text serialization, and the
// trainer that builds them from a chunk stream.
//
// A codebook is a schema plus K raw-domain centroid rows; row i is code i.
// The text form is a "#Name,Name,..." header followed by one comma-separated
// centroid per line:
//
//	#DeletionQV,DeletionTag,InsertionQV,MergeQV,SubstitutionQV
//	2,65,3,30,0
//	7,78,1,30,2
package codebook
