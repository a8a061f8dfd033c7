package qvcompress

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/hupe1980/qvcompress/blobstore/minio"
	"github.com/hupe1980/qvcompress/codebook"
	"github.com/hupe1980/qvcompress/codec"
	"github.com/hupe1980/qvcompress/feature"
	"github.com/hupe1980/qvcompress/store"
	"github.com/hupe1980/qvcompress/store/columnar"
)

// Version is reported in the @PG line of rewritten SAM files.
const Version = "0.3.0"

// S3Config configures s3:// columnar stores.
type S3Config struct {
	Region   string
	Endpoint string
}

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	runID            string
	cmdLine          string

	features       feature.Schema
	chunkSize      int
	seed           int64
	maxIterations  int
	init           codebook.Init
	workers        int
	memoryLimit    int64
	writeRateLimit int64
	ioRateLimit    int64

	overwrite   bool
	rleTag      bool
	output      string
	readOnly    bool
	compression columnar.Compression
	blockRows   int

	s3    S3Config
	minio minio.Config
}

// Option configures BuildCodebook, Encode and the store helpers.
type Option func(*options)

// WithCodec configures the codec used for manifests and the codebook
// embedded in SAM headers.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &qvcompress.BasicMetricsCollector{}
//	_, _ = qvcompress.Encode(ctx, "movie.qvdb", cb, qvcompress.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
//	fmt.Printf("Rows: %d, Avg write: %dns\n", stats.WriteRows, stats.WriteAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging and the warning sink.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := qvcompress.NewJSONLogger(os.Stderr, slog.LevelInfo)
//	res, _ := qvcompress.BuildCodebook(ctx, "movie.qvdb", 64, 1000000, qvcompress.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger on stderr with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(os.Stderr, level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(os.Stderr, level)
	}
}

// WithRunID sets the id tagging log records and the @PG line. A random UUID
// is used otherwise.
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}

// WithCommandLine records the invoking command line in the @PG line.
func WithCommandLine(cmdLine string) Option {
	return func(o *options) {
		o.cmdLine = cmdLine
	}
}

// WithFeatures selects the channels to train on. Defaults to
// feature.QuiverFeatures. Encode always uses the codebook's channels.
func WithFeatures(schema feature.Schema) Option {
	return func(o *options) {
		o.features = schema
	}
}

// WithChunkSize sets the rows read per chunk (default 500000).
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

// WithSeed seeds k-means initialization.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithMaxIterations caps Lloyd iterations (default 100).
func WithMaxIterations(n int) Option {
	return func(o *options) {
		o.maxIterations = n
	}
}

// WithInit selects the centroid initialization.
func WithInit(seeding codebook.Init) Option {
	return func(o *options) {
		o.init = seeding
	}
}

// WithWorkers sets the goroutines used for nearest-centroid assignment.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithMemoryLimit bounds the training matrix in bytes. 0 means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithWriteRateLimit caps writeback throughput in rows per second.
func WithWriteRateLimit(rowsPerSec int64) Option {
	return func(o *options) {
		o.writeRateLimit = rowsPerSec
	}
}

// WithIORateLimit caps SAM output throughput in bytes per second.
func WithIORateLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioRateLimit = bytesPerSec
	}
}

// WithOverwriteQVs replaces the stored feature values with their codebook
// reconstruction. This is destructive for group-oriented stores.
func WithOverwriteQVs(enabled bool) Option {
	return func(o *options) {
		o.overwrite = enabled
	}
}

// WithRunLengthTag adds the run-length encoded DeletionTag to rewritten
// records. Ignored, with a warning, for group-oriented stores.
func WithRunLengthTag(enabled bool) Option {
	return func(o *options) {
		o.rleTag = enabled
	}
}

// WithOutput sets the output of record-oriented stores. Defaults to
// <input>.vq.sam with the input's compression suffix.
func WithOutput(path string) Option {
	return func(o *options) {
		o.output = path
	}
}

// WithReadOnly opens stores without write access.
func WithReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
	}
}

// WithCompression selects the block compression of new columnar stores.
func WithCompression(c columnar.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithBlockRows sets the rows per block of new columnar stores.
func WithBlockRows(n int) Option {
	return func(o *options) {
		o.blockRows = n
	}
}

// WithS3 configures s3:// stores.
func WithS3(cfg S3Config) Option {
	return func(o *options) {
		o.s3 = cfg
	}
}

// WithMinIO configures minio:// stores. Endpoint is required.
func WithMinIO(cfg minio.Config) Option {
	return func(o *options) {
		o.minio = cfg
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		features:         feature.QuiverFeatures,
		chunkSize:        store.DefaultChunkSize,
		seed:             1,
		init:             codebook.InitPlusPlus,
		compression:      columnar.CompressionZSTD,
		blockRows:        columnar.DefaultBlockRows,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	o.logger = o.logger.WithRun(o.runID)
	return o
}
