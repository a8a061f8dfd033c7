// Package diag carries the caller-supplied diagnostics through the training
// and quantization pipeline: a warning sink for non-fatal conditions and a
// metrics collector. Neither is held as package state; both are passed in.
package diag

import (
	"context"
	"log/slog"
	"time"
)

// Warning codes.
const (
	// CodePartialTraining: the store held fewer observations than requested.
	CodePartialTraining = "partial_training"
	// CodeRLEUnsupported: run-length tag encoding was requested for a group-oriented store.
	CodeRLEUnsupported = "rle_unsupported"
	// CodeEmptyCluster: k-means reseeded a cluster that lost all members.
	CodeEmptyCluster = "empty_cluster_reseeded"
)

// Sink receives non-fatal conditions.
type Sink interface {
	Warn(ctx context.Context, code string, attrs ...slog.Attr)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, code string, attrs ...slog.Attr)

// Warn implements Sink.
func (f SinkFunc) Warn(ctx context.Context, code string, attrs ...slog.Attr) { f(ctx, code, attrs...) }

// Discard drops every warning.
type Discard struct{}

// Warn implements Sink.
func (Discard) Warn(context.Context, string, ...slog.Attr) {}

// Metrics receives timing and volume measurements of pipeline steps.
type Metrics interface {
	// RecordChunk is called after a chunk was read and assigned.
	RecordChunk(rows int, duration time.Duration, err error)

	// RecordTraining is called once per trained codebook.
	RecordTraining(rows, clusters, iterations int, duration time.Duration)

	// RecordWrite is called after each writeback.
	RecordWrite(rows int, duration time.Duration, err error)
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) RecordChunk(int, time.Duration, error)       {}
func (NoopMetrics) RecordTraining(int, int, int, time.Duration) {}
func (NoopMetrics) RecordWrite(int, time.Duration, error)       {}
