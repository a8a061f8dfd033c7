package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/qvcompress/blobstore"
)

// UploadConfig tunes streaming uploads.
type UploadConfig struct {
	// PartSize is the multipart part size. Blobs smaller than one part
	// are sent with a single PutObject.
	PartSize int64

	// Concurrency is the number of parts in flight.
	Concurrency int

	// Checksum requests CRC32C validation by S3.
	Checksum bool
}

// DefaultUploadConfig returns 8 MiB parts, 5 in flight, with checksums.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:    8 << 20,
		Concurrency: 5,
		Checksum:    true,
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
	})
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// checksumCRC32C renders the CRC32C of data the way S3 expects it: the
// big-endian sum, base64 encoded.
func checksumCRC32C(data []byte) string {
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc32.Checksum(data, castagnoli))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// put sends data in one request with its CRC32C attached.
func put(ctx context.Context, client Client, bucket, key string, data []byte) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(bucket),
		Key:            aws.String(key),
		Body:           bytes.NewReader(data),
		ContentLength:  aws.Int64(int64(len(data))),
		ContentType:    aws.String(blobstore.ContentType(key)),
		ChecksumCRC32C: aws.String(checksumCRC32C(data)),
	})
	return err
}

// pipeUpload feeds writes through a pipe into manager.Uploader running in
// the background. The object exists once Close returns nil.
type pipeUpload struct {
	pw     *io.PipeWriter
	result chan error

	once sync.Once
	err  error
}

var _ blobstore.WritableBlob = (*pipeUpload)(nil)

func startUpload(ctx context.Context, uploader *manager.Uploader, bucket, key string, checksum bool) *pipeUpload {
	pr, pw := io.Pipe()
	u := &pipeUpload{pw: pw, result: make(chan error, 1)}

	in := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        pr,
		ContentType: aws.String(blobstore.ContentType(key)),
	}
	if checksum {
		in.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}

	go func() {
		_, err := uploader.Upload(ctx, in)
		_ = pr.CloseWithError(err)
		u.result <- err
	}()
	return u
}

func (u *pipeUpload) Write(p []byte) (int, error) {
	return u.pw.Write(p)
}

// Close finishes the upload and waits for S3 to acknowledge it.
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
