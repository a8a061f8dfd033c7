package s3

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/qvcompress/blobstore"
)

// Client is the subset of the S3 API the store uses. *s3.Client satisfies it.
type Client interface {
	manager.UploadAPIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store keeps the blobs of one columnar store under a key prefix.
type Store struct {
	client   Client
	bucket   string
	prefix   string
	upload   UploadConfig
	uploader *manager.Uploader
}

var _ blobstore.BlobStore = (*Store)(nil)

type options struct {
	prefix   string
	region   string
	endpoint string
	upload   UploadConfig
}

// Option configures New.
type Option func(*options)

// WithPrefix sets the key prefix (e.g. "runs/movie1.qvc").
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithRegion overrides the region from the shared configuration.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithEndpoint points the client at an S3 compatible endpoint using path-style
// addressing.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithUploadConfig replaces DefaultUploadConfig.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(o *options) {
		o.upload = cfg
	}
}

// New loads the default AWS configuration and creates a store for bucket.
func New(ctx context.Context, bucket string, optFns ...Option) (*Store, error) {
	opts := options{upload: DefaultUploadConfig()}
	for _, fn := range optFns {
		fn(&opts)
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.endpoint != "" {
			o.BaseEndpoint = aws.String(opts.endpoint)
			o.UsePathStyle = true
		}
	})
	return newStore(client, bucket, opts.prefix, opts.upload), nil
}

// NewStore wraps an existing client. rootPrefix is prepended to all keys.
func NewStore(client Client, bucket, rootPrefix string) *Store {
	return newStore(client, bucket, rootPrefix, DefaultUploadConfig())
}

func newStore(client Client, bucket, rootPrefix string, cfg UploadConfig) *Store {
	return &Store{
		client:   client,
		bucket:   bucket,
		prefix:   rootPrefix,
		upload:   cfg,
		uploader: newUploader(client, cfg),
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open implements blobstore.BlobStore.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	obj, err := head(ctx, s.client, s.bucket, s.key(name))
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Create implements blobstore.BlobStore with a streaming upload.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return startUpload(ctx, s.uploader, s.bucket, s.key(name), s.upload.Checksum), nil
}

// Put implements blobstore.BlobStore.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if err := put(ctx, s.client, s.bucket, s.key(name), data); err != nil {
		return fmt.Errorf("s3: put %s: %w", name, err)
	}
	return nil
}

// Delete implements blobstore.BlobStore. S3 deletes are idempotent.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return fmt.Errorf("s3: delete %s: %w", name, err)
	}
	return nil
}

// List implements blobstore.BlobStore. Names are relative to the store prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	full := s.key(prefix)
	if strings.HasSuffix(prefix, "/") {
		full += "/"
	}

	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(full),
	})

	var names []string
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3: list %s: %w", full, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(strings.TrimPrefix(aws.ToString(obj.Key), s.prefix), "/")
			if name != "" {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names, nil
}
