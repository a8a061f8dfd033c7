// Package blobstore is the storage layer under columnar feature stores. A
// columnar store is a manifest plus one blob per column block; BlobStore
// moves those blobs without knowing what they hold.
//
// Backends:
//
//   - LocalStore: a directory, used for .qvc paths
//   - MemoryStore: process memory
//   - s3.Store: s3://bucket/prefix locations
//   - minio.Store: minio://bucket/prefix locations
//
// Names are slash separated and relative to the backend's root. Put replaces
// a blob in one step; blobs from Create appear on Close. Reads past the end
// of a blob report io.EOF, see Span.
package blobstore
