package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/qvcompress/blobstore"
)

// object is a ranged-read handle on one S3 object. Column blocks are small,
// so each read is a single GET.
type object struct {
	client Client
	bucket string
	key    string
	size   int64
}

var _ blobstore.Blob = (*object)(nil)

func (o *object) Close() error { return nil }

func (o *object) Size() int64 { return o.size }

// get fetches the bytes [off, end).
func (o *object) get(ctx context.Context, off, end int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end-1)),
	})
	if err != nil {
		return nil, fmt.Errorf("s3: get %s: %w", o.key, err)
	}
	return out.Body, nil
}

// ReadAt implements blobstore.Blob. A read crossing the end of the object
// returns the available bytes with io.EOF.
func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	end, err := blobstore.Span(off, int64(len(p)), o.size)
	if err != nil {
		return 0, err
	}
	if end == off {
		return 0, nil
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

// head stats key. Missing objects map to blobstore.ErrNotFound.
func head(ctx context.Context, client Client, bucket, key string) (*object, error) {
	out, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, fmt.Errorf("s3: head %s: %w", key, err)
	}
	return &object{
		client: client,
		bucket: bucket,
		key:    key,
		size:   aws.ToInt64(out.ContentLength),
	}, nil
}

func isNotFound(err error) bool {
	var (
		nf  *types.NotFound
		nsk *types.NoSuchKey
	)
	return errors.As(err, &nf) || errors.As(err, &nsk)
}
