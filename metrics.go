package qvcompress

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/qvcompress/diag"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    rowsCounter    prometheus.Counter
//	    writeHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordWrite(rows int, duration time.Duration, err error) {
//	    p.rowsCounter.Add(float64(rows))
//	    p.writeHistogram.Observe(duration.Seconds())
//	}
type MetricsCollector = diag.Metrics

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector = diag.NoopMetrics

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ChunkCount         atomic.Int64
	ChunkRows          atomic.Int64
	ChunkErrors        atomic.Int64
	ChunkTotalNanos    atomic.Int64
	TrainingCount      atomic.Int64
	TrainingRows       atomic.Int64
	TrainingIterations atomic.Int64
	TrainingTotalNanos atomic.Int64
	WriteCount         atomic.Int64
	WriteRows          atomic.Int64
	WriteErrors        atomic.Int64
	WriteTotalNanos    atomic.Int64
}

var _ MetricsCollector = (*BasicMetricsCollector)(nil)

// RecordChunk implements MetricsCollector.
func (b *BasicMetricsCollector) RecordChunk(rows int, duration time.Duration, err error) {
	b.ChunkCount.Add(1)
	b.ChunkRows.Add(int64(rows))
	b.ChunkTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ChunkErrors.Add(1)
	}
}

// RecordTraining implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTraining(rows, _, iterations int, duration time.Duration) {
	b.TrainingCount.Add(1)
	b.TrainingRows.Add(int64(rows))
	b.TrainingIterations.Add(int64(iterations))
	b.TrainingTotalNanos.Add(duration.Nanoseconds())
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(rows int, duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteRows.Add(int64(rows))
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ChunkCount:         b.ChunkCount.Load(),
		ChunkRows:          b.ChunkRows.Load(),
		ChunkErrors:        b.ChunkErrors.Load(),
		ChunkAvgNanos:      avg(b.ChunkTotalNanos.Load(), b.ChunkCount.Load()),
		TrainingCount:      b.TrainingCount.Load(),
		TrainingRows:       b.TrainingRows.Load(),
		TrainingIterations: b.TrainingIterations.Load(),
		WriteCount:         b.WriteCount.Load(),
		WriteRows:          b.WriteRows.Load(),
		WriteErrors:        b.WriteErrors.Load(),
		WriteAvgNanos:      avg(b.WriteTotalNanos.Load(), b.WriteCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ChunkCount         int64
	ChunkRows          int64
	ChunkErrors        int64
	ChunkAvgNanos      int64
	TrainingCount      int64
	TrainingRows       int64
	TrainingIterations int64
	WriteCount         int64
	WriteRows          int64
	WriteErrors        int64
	WriteAvgNanos      int64
}
