// Package store abstracts the alignment stores QVs are read from and written
// back to.
//
// A store is opened once and dispatched by Kind:
//
//   - GroupOriented stores hold column-oriented feature arrays per named group
//     and support random-access reads and in-place writes by row range
//     (store/sqlite, store/columnar, MemoryStore).
//   - RecordOriented stores hold one record per read with features carried as
//     per-record tags; they are rewritten record by record into a new output
//     (store/sam).
//
// ChunkSource turns either kind into a bounded, ordered stream of Chunks.
package store
