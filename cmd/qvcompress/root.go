package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hupe1980/qvcompress"
	"github.com/hupe1980/qvcompress/codebook"
	"github.com/hupe1980/qvcompress/codec"
	"github.com/hupe1980/qvcompress/feature"
	"github.com/hupe1980/qvcompress/store"
	"github.com/hupe1980/qvcompress/store/columnar"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	config         string
	debug          bool
	logFormat      string
	runID          string
	features       string
	chunkSize      int
	workers        int
	memoryLimit    int64
	writeRateLimit int64
	ioRateLimit    int64
	compression    string
	codec          string
	s3Region       string
	s3Endpoint     string
	minioEndpoint  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "qvcompress",
		Short: "Vector quantization of per-base quality values",
		Long: `qvcompress trains a codebook of representative quality value vectors and
replaces every base's QV channels by the index of its nearest code.

Stores are picked by extension: .qvdb (SQLite), .qvc, s3:// or minio://
(columnar) and .sam, .sam.gz, .sam.zst (SAM records).

Examples:
  qvcompress build-codebook movie.qvdb 64 1000000 movie.codebook
  qvcompress encode movie.qvdb movie.codebook
  qvcompress encode movie.sam.gz movie.codebook --rle-tag
  qvcompress import movie.sam movie.qvc --compression lz4
  qvcompress inspect movie.vq.sam.gz`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       qvcompress.Version,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.config, "config", "", "YAML file with default flag values")
	pf.BoolVar(&g.debug, "debug", false, "enable debug logging")
	pf.StringVar(&g.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&g.runID, "run-id", "", "run id for logs and the @PG line (default: random UUID)")
	pf.StringVar(&g.features, "features", feature.QuiverFeatures.String(), "comma separated feature channels")
	pf.IntVar(&g.chunkSize, "chunk-size", store.DefaultChunkSize, "rows read per chunk")
	pf.IntVar(&g.workers, "workers", 1, "goroutines for nearest-code search")
	pf.Int64Var(&g.memoryLimit, "memory-limit", 0, "training matrix limit in bytes (0: unlimited)")
	pf.Int64Var(&g.writeRateLimit, "write-rate-limit", 0, "writeback rows per second (0: unlimited)")
	pf.Int64Var(&g.ioRateLimit, "io-rate-limit", 0, "SAM output bytes per second (0: unlimited)")
	pf.StringVar(&g.compression, "compression", columnar.CompressionZSTD.String(), "block compression of new columnar stores: none, lz4, zstd")
	pf.StringVar(&g.codec, "codec", "", "metadata codec: "+strings.Join(codec.Names, ", ")+" (default: go-json)")
	pf.StringVar(&g.s3Region, "s3-region", "", "region of s3:// stores")
	pf.StringVar(&g.s3Endpoint, "s3-endpoint", "", "S3 compatible endpoint")
	pf.StringVar(&g.minioEndpoint, "minio-endpoint", "", "endpoint of minio:// stores")

	root.AddCommand(
		newBuildCodebookCmd(g),
		newEncodeCmd(g),
		newInspectCmd(g),
		newImportCmd(g),
	)
	return root
}

// runContext is what a subcommand needs after flags and config are merged.
type runContext struct {
	cfg    *fileConfig
	logger *qvcompress.Logger
	opts   []qvcompress.Option
}

func (g *globalFlags) resolve(cmd *cobra.Command) (*runContext, error) {
	cfg, err := loadConfig(g.config)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	set := func(name string) bool { return flags.Changed(name) }

	if !set("debug") && cfg.Debug {
		g.debug = true
	}
	if !set("log-format") && cfg.LogFormat != "" {
		g.logFormat = cfg.LogFormat
	}
	if !set("features") && cfg.Features != "" {
		g.features = cfg.Features
	}
	if !set("chunk-size") && cfg.ChunkSize != 0 {
		g.chunkSize = cfg.ChunkSize
	}
	if !set("workers") && cfg.Workers != 0 {
		g.workers = cfg.Workers
	}
	if !set("memory-limit") && cfg.MemoryLimit != 0 {
		g.memoryLimit = cfg.MemoryLimit
	}
	if !set("write-rate-limit") && cfg.WriteRateLimit != 0 {
		g.writeRateLimit = cfg.WriteRateLimit
	}
	if !set("io-rate-limit") && cfg.IORateLimit != 0 {
		g.ioRateLimit = cfg.IORateLimit
	}
	if !set("compression") && cfg.Compression != "" {
		g.compression = cfg.Compression
	}
	if !set("codec") && cfg.Codec != "" {
		g.codec = cfg.Codec
	}
	if !set("s3-region") && cfg.S3.Region != "" {
		g.s3Region = cfg.S3.Region
	}
	if !set("s3-endpoint") && cfg.S3.Endpoint != "" {
		g.s3Endpoint = cfg.S3.Endpoint
	}
	if set("minio-endpoint") {
		cfg.MinIO.Endpoint = g.minioEndpoint
	}

	logger, err := newLogger(cmd.ErrOrStderr(), g.logFormat, g.debug)
	if err != nil {
		return nil, err
	}

	schema, err := feature.ParseSchema(g.features)
	if err != nil {
		return nil, err
	}
	compression, err := columnar.ParseCompression(g.compression)
	if err != nil {
		return nil, err
	}
	cd, err := codec.ByName(g.codec)
	if err != nil {
		return nil, err
	}
	if g.runID == "" {
		g.runID = uuid.NewString()
	}

	opts := []qvcompress.Option{
		qvcompress.WithLogger(logger),
		qvcompress.WithRunID(g.runID),
		qvcompress.WithCommandLine(commandLine(cmd)),
		qvcompress.WithFeatures(schema),
		qvcompress.WithChunkSize(g.chunkSize),
		qvcompress.WithWorkers(g.workers),
		qvcompress.WithMemoryLimit(g.memoryLimit),
		qvcompress.WithWriteRateLimit(g.writeRateLimit),
		qvcompress.WithIORateLimit(g.ioRateLimit),
		qvcompress.WithCompression(compression),
		qvcompress.WithCodec(cd),
		qvcompress.WithS3(qvcompress.S3Config{Region: g.s3Region, Endpoint: g.s3Endpoint}),
		qvcompress.WithMinIO(cfg.minio()),
	}
	return &runContext{cfg: cfg, logger: logger, opts: opts}, nil
}

// trainingOptions adds the k-means settings of the config file. Flags of
// build-codebook are applied after these.
func (rc *runContext) trainingOptions() ([]qvcompress.Option, error) {
	opts := rc.opts
	if rc.cfg.Seed != 0 {
		opts = append(opts, qvcompress.WithSeed(rc.cfg.Seed))
	}
	if rc.cfg.MaxIterations != 0 {
		opts = append(opts, qvcompress.WithMaxIterations(rc.cfg.MaxIterations))
	}
	if rc.cfg.Init != "" {
		seeding, err := codebook.ParseInit(rc.cfg.Init)
		if err != nil {
			return nil, err
		}
		opts = append(opts, qvcompress.WithInit(seeding))
	}
	return opts, nil
}

func newLogger(w io.Writer, format string, debug bool) (*qvcompress.Logger, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	switch format {
	case "", "text":
		return qvcompress.NewTextLogger(w, level), nil
	case "json":
		return qvcompress.NewJSONLogger(w, level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func commandLine(cmd *cobra.Command) string {
	parts := append([]string{cmd.CommandPath()}, cmd.Flags().Args()...)
	return strings.Join(parts, " ")
}
