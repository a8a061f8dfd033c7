package codebook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/qvcompress/diag"
	"github.com/hupe1980/qvcompress/feature"
	"github.com/hupe1980/qvcompress/internal/kmeans"
	"github.com/hupe1980/qvcompress/resource"
	"github.com/hupe1980/qvcompress/store"
)

// DefaultNumObservations is the training sample size used by the CLI.
const DefaultNumObservations = 1000000

// Init selects how k-means seeds its centroids.
type Init = kmeans.Init

const (
	InitPlusPlus = kmeans.InitPlusPlus
	InitRandom   = kmeans.InitRandom
)

// ParseInit accepts the names printed by Init.String.
func ParseInit(s string) (Init, error) {
	switch s {
	case "", InitPlusPlus.String():
		return InitPlusPlus, nil
	case InitRandom.String():
		return InitRandom, nil
	default:
		return 0, fmt.Errorf("codebook: unknown init %q", s)
	}
}

// ChunkReader yields chunks until io.EOF. *store.ChunkSource implements it.
type ChunkReader interface {
	Next(ctx context.Context) (store.Chunk, error)
}

type trainerOptions struct {
	seed      int64
	maxIter   int
	init      Init
	sink      diag.Sink
	metrics   diag.Metrics
	resources *resource.Controller
}

// TrainerOption configures a Trainer.
type TrainerOption func(*trainerOptions)

// WithSeed fixes the k-means random source.
func WithSeed(seed int64) TrainerOption {
	return func(o *trainerOptions) { o.seed = seed }
}

// WithMaxIterations caps Lloyd iterations.
func WithMaxIterations(n int) TrainerOption {
	return func(o *trainerOptions) { o.maxIter = n }
}

// WithInit picks the centroid seeding.
func WithInit(seeding Init) TrainerOption {
	return func(o *trainerOptions) { o.init = seeding }
}

// WithSink routes non-fatal conditions to s.
func WithSink(s diag.Sink) TrainerOption {
	return func(o *trainerOptions) { o.sink = s }
}

// WithMetrics records training measurements.
func WithMetrics(m diag.Metrics) TrainerOption {
	return func(o *trainerOptions) { o.metrics = m }
}

// WithResources accounts the training matrix against c's memory limit.
func WithResources(c *resource.Controller) TrainerOption {
	return func(o *trainerOptions) { o.resources = c }
}

// Trainer builds codebooks with k-means over normalized observations.
type Trainer struct {
	opts trainerOptions
}

// NewTrainer creates a trainer.
func NewTrainer(opts ...TrainerOption) *Trainer {
	o := trainerOptions{
		seed:    1,
		maxIter: kmeans.DefaultMaxIter,
		init:    InitPlusPlus,
		sink:    diag.Discard{},
		metrics: diag.NoopMetrics{},
	}
	for _, fn := range opts {
		fn(&o)
	}
	return &Trainer{opts: o}
}

// Result describes one training run.
type Result struct {
	Codebook *Codebook
	// Scale is the per-channel divisor the centroids were trained under.
	Scale feature.Scale
	// Observations is the number of rows pulled from the source.
	Observations int
	// Dropped is the number of sentinel rows removed before clustering.
	Dropped    int
	Iterations int
	Converged  bool
	// Warning is set when the source held fewer rows than requested.
	Warning *PartialTrainingWarning
}

// Train pulls up to numObservations rows from src, normalizes them with
// sentinel rows dropped, clusters them into numClusters centroids and maps
// the centroids back to raw values.
func (t *Trainer) Train(ctx context.Context, src ChunkReader, schema feature.Schema, numClusters, numObservations int) (*Result, error) {
	if numClusters <= 0 {
		return nil, ErrInvalidNumClusters
	}
	if numObservations <= 0 {
		return nil, ErrInvalidNumObservations
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	budget := resource.MatrixBytes(numObservations, schema.Len())
	if err := t.opts.resources.AcquireMemory(ctx, budget); err != nil {
		return nil, err
	}
	defer t.opts.resources.ReleaseMemory(budget)

	raw, err := assemble(ctx, src, schema, numObservations)
	if err != nil {
		return nil, err
	}

	res := &Result{Observations: raw.Rows()}
	if raw.Rows() < numObservations {
		res.Warning = &PartialTrainingWarning{Observed: raw.Rows(), Requested: numObservations}
		t.opts.sink.Warn(ctx, diag.CodePartialTraining,
			slog.Int("observed", raw.Rows()),
			slog.Int("requested", numObservations),
		)
	}
	if raw.Rows() == 0 {
		return nil, &InsufficientDataError{Requested: numObservations}
	}

	norm, err := feature.Normalize(raw, schema, feature.NormalizeOptions{DropSentinelRows: true})
	if err != nil {
		return nil, err
	}
	res.Scale = norm.Scale
	res.Dropped = int(norm.Dropped.GetCardinality())

	rows := norm.Matrix.Rows()
	if rows == 0 {
		return nil, &InsufficientDataError{Requested: numObservations, Dropped: res.Dropped}
	}
	if numClusters > rows {
		return nil, &DegenerateClusterError{Clusters: numClusters, Rows: rows}
	}

	km, err := kmeans.Train(ctx, norm.Matrix.Data(), schema.Len(), numClusters, kmeans.Options{
		MaxIter: t.opts.maxIter,
		Init:    t.opts.init,
		Seed:    t.opts.seed,
		OnEmptyCluster: func(cluster, iteration int) {
			t.opts.sink.Warn(ctx, diag.CodeEmptyCluster,
				slog.Int("cluster", cluster),
				slog.Int("iteration", iteration),
			)
		},
	})
	if err != nil {
		return nil, err
	}

	centroids := feature.NewMatrixFrom(numClusters, schema.Len(), km.Centroids)
	rawCentroids, err := feature.Denormalize(centroids, schema, norm.Scale)
	if err != nil {
		return nil, err
	}

	cb, err := New(schema, rawCentroids)
	if err != nil {
		return nil, err
	}
	res.Codebook = cb
	res.Iterations = km.Iterations
	res.Converged = km.Converged

	t.opts.metrics.RecordTraining(rows, numClusters, km.Iterations, time.Since(start))
	return res, nil
}

// Train is a shorthand for NewTrainer(opts...).Train.
func Train(ctx context.Context, src ChunkReader, schema feature.Schema, numClusters, numObservations int, opts ...TrainerOption) (*Result, error) {
	return NewTrainer(opts...).Train(ctx, src, schema, numClusters, numObservations)
}

// assemble concatenates chunks until limit rows were read or src is exhausted.
func assemble(ctx context.Context, src ChunkReader, schema feature.Schema, limit int) (*feature.Matrix, error) {
	out := feature.NewMatrix(0, schema.Len())
	for out.Rows() < limit {
		ch, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := feature.CheckSchema(schema, ch.Schema); err != nil {
			return nil, err
		}

		data := ch.Data
		if take := limit - out.Rows(); data.Rows() > take {
			data = data.Slice(0, take)
		}
		if err := out.Append(data); err != nil {
			return nil, err
		}
	}
	return out, nil
}
