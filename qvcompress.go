package qvcompress

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hupe1980/qvcompress/blobstore"
	"github.com/hupe1980/qvcompress/blobstore/minio"
	"github.com/hupe1980/qvcompress/blobstore/s3"
	"github.com/hupe1980/qvcompress/codebook"
	"github.com/hupe1980/qvcompress/feature"
	"github.com/hupe1980/qvcompress/quantize"
	"github.com/hupe1980/qvcompress/resource"
	"github.com/hupe1980/qvcompress/store"
	"github.com/hupe1980/qvcompress/store/columnar"
	"github.com/hupe1980/qvcompress/store/sam"
	"github.com/hupe1980/qvcompress/store/sqlite"
)

// ProgramName is the @PG name of rewritten SAM files.
const ProgramName = "qvcompress"

// OpenStore opens the store at path. The format follows from the extension
// or URL scheme, see store.DetectFormat.
func OpenStore(ctx context.Context, path string, optFns ...Option) (store.Store, error) {
	o := applyOptions(optFns)
	return openStore(ctx, path, &o, nil)
}

func openStore(ctx context.Context, path string, o *options, rc *resource.Controller) (store.Store, error) {
	format, err := store.DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case store.FormatSQLite:
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		var opts []sqlite.Option
		if o.readOnly {
			opts = append(opts, sqlite.WithReadOnly())
		}
		return sqlite.Open(ctx, path, opts...)
	case store.FormatColumnar:
		blobs, err := openBlobStore(ctx, path, o)
		if err != nil {
			return nil, err
		}
		opts := []columnar.Option{columnar.WithCodec(o.codec)}
		if o.readOnly {
			opts = append(opts, columnar.WithReadOnly())
		}
		return columnar.Open(ctx, blobs, path, opts...)
	case store.FormatSAM:
		return sam.Open(ctx, path, sam.WithResources(rc))
	default:
		return nil, &UnsupportedStoreError{Path: path, Reason: "unrecognized extension"}
	}
}

// CreateStore creates an empty group-oriented store at path. Existing stores
// are never overwritten.
func CreateStore(ctx context.Context, path string, optFns ...Option) (store.Store, error) {
	o := applyOptions(optFns)
	return createStore(ctx, path, &o)
}

func createStore(ctx context.Context, path string, o *options) (store.Store, error) {
	format, err := store.DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case store.FormatSQLite:
		return sqlite.Create(ctx, path)
	case store.FormatColumnar:
		blobs, err := openBlobStore(ctx, path, o)
		if err != nil {
			return nil, err
		}
		if b, ok := blobs.(interface{ EnsureBucket(context.Context) error }); ok {
			if err := b.EnsureBucket(ctx); err != nil {
				return nil, err
			}
		}
		return columnar.Create(ctx, blobs, path,
			columnar.WithCodec(o.codec),
			columnar.WithCompression(o.compression),
			columnar.WithBlockRows(o.blockRows),
		)
	default:
		return nil, &UnsupportedStoreError{Path: path, Reason: format.String() + " stores are read through their source files"}
	}
}

// openBlobStore resolves a columnar location: a local directory, an
// s3://bucket/prefix or a minio://bucket/prefix URL.
func openBlobStore(ctx context.Context, path string, o *options) (blobstore.BlobStore, error) {
	switch {
	case hasScheme(path, store.SchemeS3):
		bucket, prefix, err := splitBucket(path, store.SchemeS3)
		if err != nil {
			return nil, err
		}
		opts := []s3.Option{s3.WithPrefix(prefix)}
		if o.s3.Region != "" {
			opts = append(opts, s3.WithRegion(o.s3.Region))
		}
		if o.s3.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(o.s3.Endpoint))
		}
		return s3.New(ctx, bucket, opts...)
	case hasScheme(path, store.SchemeMinIO):
		bucket, prefix, err := splitBucket(path, store.SchemeMinIO)
		if err != nil {
			return nil, err
		}
		if o.minio.Endpoint == "" {
			return nil, &UnsupportedStoreError{Path: path, Reason: "minio endpoint not configured"}
		}
		return minio.New(o.minio, bucket, prefix)
	default:
		return blobstore.NewLocalStore(path), nil
	}
}

func hasScheme(path, scheme string) bool {
	return strings.HasPrefix(strings.ToLower(path), scheme)
}

func splitBucket(url, scheme string) (bucket, prefix string, err error) {
	rest := url[len(scheme):]
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", &UnsupportedStoreError{Path: url, Reason: "missing bucket"}
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

func (o *options) resources() *resource.Controller {
	return resource.NewController(resource.Config{
		MemoryLimitBytes:   o.memoryLimit,
		Workers:            o.workers,
		WriteRowsPerSec:    o.writeRateLimit,
		IOLimitBytesPerSec: o.ioRateLimit,
	})
}

// BuildCodebook trains a numCodes entry codebook on up to numObservations
// rows of the store at path. A store holding fewer rows still trains; the
// shortfall is logged and reported in Result.Warning.
func BuildCodebook(ctx context.Context, path string, numCodes, numObservations int, optFns ...Option) (res *codebook.Result, err error) {
	o := applyOptions(append([]Option{WithReadOnly()}, optFns...))
	logger := o.logger.WithStore(path).WithCodes(numCodes)
	defer func() { logger.LogTraining(ctx, res, err) }()

	rc := o.resources()
	s, err := openStore(ctx, path, &o, rc)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()

	logger.DebugContext(ctx, "building codebook",
		"features", o.features.String(),
		"observations", numObservations,
		"chunk_size", o.chunkSize,
	)

	src, err := store.NewStoreChunkSource(s, o.features, o.chunkSize, store.WithMaxRows(numObservations))
	if err != nil {
		return nil, err
	}
	defer src.Close()

	opts := []codebook.TrainerOption{
		codebook.WithSeed(o.seed),
		codebook.WithInit(o.init),
		codebook.WithSink(logger),
		codebook.WithMetrics(o.metricsCollector),
		codebook.WithResources(rc),
	}
	if o.maxIterations > 0 {
		opts = append(opts, codebook.WithMaxIterations(o.maxIterations))
	}
	return codebook.Train(ctx, src, o.features, numCodes, numObservations, opts...)
}

// Encode assigns every row of the store at path to its nearest code.
// Group-oriented stores receive a VQ column in place; record-oriented stores
// are rewritten to the WithOutput path, by default sam.DefaultOutputPath.
func Encode(ctx context.Context, path string, cb *codebook.Codebook, optFns ...Option) (stats *quantize.Stats, err error) {
	o := applyOptions(optFns)
	logger := o.logger.WithStore(path).WithCodes(cb.Len())

	rc := o.resources()
	s, err := openStore(ctx, path, &o, rc)
	if err != nil {
		logger.LogEncode(ctx, nil, "", err)
		return nil, err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()

	output := ""
	if s.Kind() == store.RecordOriented {
		output = o.output
		if output == "" {
			output = sam.DefaultOutputPath(path)
		}
	}
	defer func() { logger.LogEncode(ctx, stats, output, err) }()

	src, err := store.NewStoreChunkSource(s, cb.Schema(), o.chunkSize)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	q := quantize.New(cb,
		quantize.WithOverwrite(o.overwrite),
		quantize.WithRunLengthTag(o.rleTag),
		quantize.WithSink(logger),
		quantize.WithMetrics(o.metricsCollector),
		quantize.WithResources(rc),
		quantize.WithCodec(o.codec),
		quantize.WithProgram(quantize.Program{
			ID:      ProgramName + "-" + o.runID,
			Name:    ProgramName,
			Version: Version,
			CmdLine: o.cmdLine,
		}),
	)
	return q.Run(ctx, src, s, output)
}

// ImportStats describes an Import run.
type ImportStats struct {
	Groups int
	Rows   int
}

// Import copies the feature channels of every record of a SAM file into a
// new group-oriented store, one group per record.
func Import(ctx context.Context, samPath, dstPath string, optFns ...Option) (stats *ImportStats, err error) {
	o := applyOptions(optFns)
	logger := o.logger.WithStore(dstPath)

	src, err := sam.Open(ctx, samPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst, err := createStore(ctx, dstPath, &o)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
	}()

	appender, ok := dst.(store.GroupAppender)
	if !ok {
		return nil, &UnsupportedStoreError{Path: dstPath, Reason: "store does not accept new groups"}
	}

	stats = &ImportStats{}
	for rec, err := range src.Records(ctx) {
		if err != nil {
			return stats, err
		}
		if missing := rec.MissingFeatures(o.features); len(missing) > 0 {
			return stats, &MissingFeatureError{Store: samPath, Missing: missing}
		}
		m, err := rec.Features(o.features)
		if err != nil {
			return stats, fmt.Errorf("import %s: %w", rec.Name(), err)
		}
		if err := appender.AppendGroup(ctx, rec.Name(), o.features, m); err != nil {
			return stats, fmt.Errorf("import %s: %w", rec.Name(), err)
		}
		stats.Groups++
		stats.Rows += m.Rows()
	}

	logger.InfoContext(ctx, "import completed",
		"source", samPath,
		"groups", stats.Groups,
		"rows", stats.Rows,
	)
	return stats, nil
}

// StoreInfo summarizes a store.
type StoreInfo struct {
	Path    string
	Format  store.Format
	Kind    store.Kind
	Columns []string
	// Groups counts groups or records.
	Groups int
	Rows   int
	// Encoded reports a VQ column, or a codebook embedded in the SAM header.
	Encoded bool
	// Codebook is the embedded codebook of an encoded SAM file.
	Codebook *codebook.Codebook
}

// Inspect opens the store at path read-only and summarizes it.
func Inspect(ctx context.Context, path string, optFns ...Option) (info *StoreInfo, err error) {
	o := applyOptions(append(optFns, WithReadOnly()))

	s, err := openStore(ctx, path, &o, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()

	format, _ := store.DetectFormat(path)
	info = &StoreInfo{Path: path, Format: format, Kind: s.Kind()}
	if info.Columns, err = s.Columns(ctx); err != nil {
		return nil, err
	}

	switch st := s.(type) {
	case store.GroupStore:
		groups, err := st.Groups(ctx)
		if err != nil {
			return nil, err
		}
		info.Groups = len(groups)
		for _, g := range groups {
			n, err := st.RowCount(ctx, g, nil)
			if err != nil {
				return nil, err
			}
			info.Rows += n
		}
		if info.Encoded, err = hasIndexColumn(ctx, st, groups); err != nil {
			return nil, err
		}
	case store.RecordStore:
		// A header without an embedded codebook belongs to a raw file.
		if cb, err := codebook.FromComments(o.codec, st.Header().Comments()); err == nil {
			info.Encoded, info.Codebook = true, cb
		}
		for rec, err := range st.Records(ctx) {
			if err != nil {
				return nil, err
			}
			info.Groups++
			if q := rec.Qual(); q != "*" {
				info.Rows += len(q)
			}
		}
	}
	return info, nil
}

// hasIndexColumn checks the first non-empty group for a VQ column. Empty
// groups never receive one.
func hasIndexColumn(ctx context.Context, s store.GroupStore, groups []string) (bool, error) {
	for _, g := range groups {
		n, err := s.RowCount(ctx, g, nil)
		if err != nil {
			return false, err
		}
		if n == 0 {
			continue
		}
		missing, err := s.MissingColumns(ctx, g, feature.Schema{store.IndexColumn})
		if err != nil {
			return false, err
		}
		return len(missing) == 0, nil
	}
	return false, nil
}
