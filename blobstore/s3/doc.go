// Package s3 stores the blobs of a columnar feature store in Amazon S3.
//
//	blobs, err := s3.New(ctx, "sequencing",
//	    s3.WithPrefix("runs/movie1.qvc"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// Manifests and column blocks are written with a single PutObject carrying a
// CRC32C checksum; Create streams through the multipart uploader. Reads are
// ranged GETs.
package s3
