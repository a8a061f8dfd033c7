package blobstore

import (
	"bytes"
	"context"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in a map. Columnar stores use it for scratch
// output and tests. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ BlobStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string][]byte{}}
}

func (m *MemoryStore) get(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[name]
	return data, ok
}

func (m *MemoryStore) set(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = data
}

// Open implements BlobStore. Stored slices are replaced, never mutated, so
// the returned blob is a stable snapshot.
func (m *MemoryStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := m.get(name)
	if !ok {
		return nil, ErrNotFound
	}
	return memoryBlob(data), nil
}

// Create implements BlobStore. The blob becomes visible on Close.
func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memoryWriter{store: m, name: name}, nil
}

// Put implements BlobStore.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.set(name, bytes.Clone(data))
	return nil
}

// Delete implements BlobStore.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}

// List implements BlobStore.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	names := slices.Sorted(maps.Keys(m.blobs))
	m.mu.RUnlock()

	return slices.DeleteFunc(names, func(name string) bool {
		return !strings.HasPrefix(name, prefix)
	}), nil
}

// Len returns the number of blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

type memoryBlob []byte

func (b memoryBlob) Size() int64 { return int64(len(b)) }

func (b memoryBlob) Close() error { return nil }

func (b memoryBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	end, err := Span(off, int64(len(p)), b.Size())
	if err != nil {
		return 0, err
	}
	n := copy(p, b[off:end])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b memoryBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	end, err := Span(off, length, b.Size())
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b[off:end])), nil
}

type memoryWriter struct {
	store *MemoryStore
	name  string
	buf   bytes.Buffer
}

func (w *memoryWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memoryWriter) Sync() error { return nil }

func (w *memoryWriter) Close() error {
	w.store.set(w.name, bytes.Clone(w.buf.Bytes()))
	w.buf.Reset()
	return nil
}
