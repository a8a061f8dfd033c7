package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/qvcompress/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config describes a MinIO endpoint.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Region    string
}

// Store keeps the blobs of one columnar store under a key prefix.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	region string
}

var _ blobstore.BlobStore = (*Store)(nil)

// New connects to the endpoint and creates a store for bucket. Credentials
// fall back to the MINIO_ROOT_USER / AWS_ACCESS_KEY_ID environment chain when
// AccessKey is empty.
func New(cfg Config, bucket, rootPrefix string) (*Store, error) {
	creds := credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	if cfg.AccessKey == "" {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvMinio{},
			&credentials.EnvAWS{},
		})
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: connect %s: %w", cfg.Endpoint, err)
	}
	s := NewStore(client, bucket, rootPrefix)
	s.region = cfg.Region
	return s, nil
}

// NewStore wraps an existing client. rootPrefix is prepended to all keys.
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("minio: bucket %s: %w", s.bucket, err)
	}
	if ok {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("minio: make bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open implements blobstore.BlobStore.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, fmt.Errorf("minio: stat %s: %w", key, err)
	}
	return &object{client: s.client, bucket: s.bucket, key: key, size: info.Size}, nil
}

// Put implements blobstore.BlobStore.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:    blobstore.ContentType(name),
		SendContentMd5: true,
	})
	if err != nil {
		return fmt.Errorf("minio: put %s: %w", key, err)
	}
	return nil
}

// Create implements blobstore.BlobStore with a streaming upload of unknown
// size. The object appears when Close returns nil.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	pr, pw := io.Pipe()
	u := &pipeUpload{pw: pw, result: make(chan error, 1)}

	opts := minio.PutObjectOptions{ContentType: blobstore.ContentType(name)}
	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, s.key(name), pr, -1, opts)
		_ = pr.CloseWithError(err)
		u.result <- err
	}()
	return u, nil
}

// Delete implements blobstore.BlobStore.
func (s *Store) Delete(ctx context.Context, name string) error {
	key := s.key(name)
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
		return fmt.Errorf("minio: delete %s: %w", key, err)
	}
	return nil
}

// List implements blobstore.BlobStore. Names are relative to the store prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	full := s.key(prefix)
	if strings.HasSuffix(prefix, "/") {
		full += "/"
	}

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: full, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio: list %s: %w", full, obj.Err)
		}
		if name := strings.TrimPrefix(strings.TrimPrefix(obj.Key, s.prefix), "/"); name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	default:
		return false
	}
}

// object is a ranged-read handle on one MinIO object.
type object struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
}

func (o *object) Size() int64 { return o.size }

func (o *object) Close() error { return nil }

// get fetches the bytes [off, end).
func (o *object) get(ctx context.Context, off, end int64) (io.ReadCloser, error) {
	var opts minio.GetObjectOptions
	if err := opts.SetRange(off, end-1); err != nil {
		return nil, err
	}
	obj, err := o.client.GetObject(ctx, o.bucket, o.key, opts)
	if err != nil {
		return nil, fmt.Errorf("minio: get %s: %w", o.key, err)
	}
	return obj, nil
}

// ReadAt implements blobstore.Blob. A read crossing the end of the object
// returns the available bytes with io.EOF.
func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	end, err := blobstore.Span(off, int64(len(p)), o.size)
	if err != nil || end == off {
		return 0, err
	}
	body, err := o.get(ctx, off, end)
	if err != nil {
		return 0, err
	}
	defer func() { _ = body.Close() }()

	n, err := io.ReadFull(body, p[:end-off])
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

// ReadRange implements blobstore.Blob.
func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	end, err := blobstore.Span(off, length, o.size)
	if err != nil {
		return nil, err
	}
	if end == off {
		return io.NopCloser(strings.NewReader("")), nil
	}
	return o.get(ctx, off, end)
}

// pipeUpload feeds writes into a PutObject running in the background.
type pipeUpload struct {
	pw     *io.PipeWriter
	result chan error

	once sync.Once
	err  error
}

func (u *pipeUpload) Write(p []byte) (int, error) {
	return u.pw.Write(p)
}

// Close finishes the upload and waits for the server to acknowledge it.
func (u *pipeUpload) Close() error {
	u.once.Do(func() {
		if err := u.pw.Close(); err != nil {
			u.err = err
			return
		}
		u.err = <-u.result
	})
	return u.err
}

// Sync is a no-op; nothing is visible before Close.
func (u *pipeUpload) Sync() error { return nil }
