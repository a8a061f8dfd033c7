package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/hupe1980/qvcompress/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to MINIO_ENDPOINT (default localhost:9000) and skips
// when no server answers.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	s, err := New(Config{Endpoint: endpoint, AccessKey: "minioadmin", SecretKey: "minioadmin"}, "test-qvcompress", "movie1.qvc")
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}
	if err := s.EnsureBucket(context.Background()); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}
	return s
}

func TestStore_Integration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	manifest := []byte(`{"version":1,"groups":[]}`)
	require.NoError(t, s.Put(ctx, "manifest.json", manifest))

	got, err := blobstore.ReadAll(ctx, s, "manifest.json")
	require.NoError(t, err)
	assert.Equal(t, manifest, got)

	blob, err := s.Open(ctx, "manifest.json")
	require.NoError(t, err)
	buf := make([]byte, 7)
	n, err := blob.ReadAt(ctx, buf, 2)
	require.NoError(t, err)
	assert.Equal(t, `version`, string(buf[:n]))

	_, err = blob.ReadRange(ctx, int64(len(manifest)), 1)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, blob.Close())

	w, err := s.Create(ctx, "groups/0/DeletionQV/000000.blk")
	require.NoError(t, err)
	_, err = w.Write([]byte{5, 5, 40, 40})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	names, err := s.List(ctx, "groups/")
	require.NoError(t, err)
	assert.Equal(t, []string{"groups/0/DeletionQV/000000.blk"}, names)

	require.NoError(t, s.Delete(ctx, "groups/0/DeletionQV/000000.blk"))
	require.NoError(t, s.Delete(ctx, "manifest.json"))
	require.NoError(t, s.Delete(ctx, "manifest.json"))

	_, err = s.Open(ctx, "manifest.json")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestNew_InvalidEndpoint(t *testing.T) {
	_, err := New(Config{Endpoint: "http://bad endpoint"}, "bucket", "")
	require.Error(t, err)
}
