// Package qvcompress provides lossy vector quantization of per-base quality
// value (QV) channels produced by single-molecule sequencing.
//
// Every base carries several byte-valued channels (DeletionQV, InsertionQV,
// MergeQV, SubstitutionQV, DeletionTag, SubstitutionTag). qvcompress trains a
// small codebook of representative channel vectors with k-means and replaces
// each base's channels by the index of its nearest codebook entry.
//
// # Quick Start
//
// Train a codebook on a store and encode it:
//
//	ctx := context.Background()
//	res, _ := qvcompress.BuildCodebook(ctx, "movie.qvdb", 64, 1000000)
//	_ = res.Codebook.Save("movie.codebook")
//	stats, _ := qvcompress.Encode(ctx, "movie.qvdb", res.Codebook)
//
// SAM input is rewritten to a new file, never in place:
//
//	_, _ = qvcompress.Encode(ctx, "movie.sam.gz", cb,
//	    qvcompress.WithOutput("movie.vq.sam.gz"),
//	    qvcompress.WithRunLengthTag(true),
//	)
//
// # Stores
//
// The store format follows from the path:
//
//	movie.qvdb, .sqlite, .db     SQLite group store (store/sqlite)
//	movie.qvc                    columnar group store in a local directory
//	s3://bucket/prefix           columnar group store on S3
//	minio://bucket/prefix        columnar group store on MinIO, see WithMinIO
//	movie.sam[.gz|.zst]          SAM record store (store/sam)
//
// Group stores receive a VQ column in place. SAM files are rewritten with the
// codebook embedded as two @CO header lines and the index in QUAL.
//
// Import converts a SAM file into a group store:
//
//	_, _ = qvcompress.Import(ctx, "movie.sam", "movie.qvc",
//	    qvcompress.WithCompression(columnar.CompressionLZ4))
//
// # Normalization
//
// Before clustering, rows whose sentinel channel (InsertionQV, or the first
// channel) holds 0 or 255 are dropped, tag symbols "-ACGNT" are remapped to
// 0..5, MergeQV is clamped at 30 and every channel is divided by its
// population standard deviation. Centroids are mapped back to raw byte values
// before they are stored.
//
// # Observability
//
// Logging uses log/slog through Logger. Non-fatal conditions such as partial
// training data arrive as WARN records carrying a code attribute:
//
//	logger := qvcompress.NewJSONLogger(os.Stderr, slog.LevelInfo)
//	metrics := &qvcompress.BasicMetricsCollector{}
//	res, err := qvcompress.BuildCodebook(ctx, path, 64, 1000000,
//	    qvcompress.WithLogger(logger),
//	    qvcompress.WithMetricsCollector(metrics),
//	)
//
// # Resource Limits
//
// WithMemoryLimit bounds the training matrix, WithWorkers parallelizes
// nearest-centroid search and WithWriteRateLimit / WithIORateLimit throttle
// writeback.
//
// # Errors
//
// Fatal conditions are typed; use errors.As:
//
//	var missing *qvcompress.MissingFeatureError
//	if errors.As(err, &missing) {
//	    fmt.Println("store lacks", missing.Missing)
//	}
package qvcompress
