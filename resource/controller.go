// Package resource bounds the memory held by training matrices and the
// throughput of writeback.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds the limits of one run. Zero values mean unlimited.
type Config struct {
	// MemoryLimitBytes caps the matrices reserved through AcquireMemory.
	MemoryLimitBytes int64
	// Workers is the nearest-code search parallelism (default 1).
	Workers int
	// WriteRowsPerSec caps the rows written back per second.
	WriteRowsPerSec int64
	// IOLimitBytesPerSec caps the bytes of record-oriented output.
	IOLimitBytesPerSec int64
}

// Controller enforces a Config. A nil *Controller imposes no limits, so
// components take one unconditionally.
type Controller struct {
	limit   int64
	workers int

	mem  *semaphore.Weighted
	used atomic.Int64

	rows  *rate.Limiter
	bytes *rate.Limiter
}

// NewController creates a controller for cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{
		limit:   cfg.MemoryLimitBytes,
		workers: max(cfg.Workers, 1),
		rows:    limiter(cfg.WriteRowsPerSec),
		bytes:   limiter(cfg.IOLimitBytesPerSec),
	}
	if c.limit > 0 {
		c.mem = semaphore.NewWeighted(c.limit)
	}
	return c
}

// limiter allows perSec events per second with a one second burst.
func limiter(perSec int64) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSec), int(perSec))
}

// MatrixBytes is the accounted size of a rows x cols float64 matrix.
func MatrixBytes(rows, cols int) int64 {
	return int64(rows) * int64(cols) * 8
}

// Workers returns the nearest-code search parallelism.
func (c *Controller) Workers() int {
	if c == nil {
		return 1
	}
	return c.workers
}

// AcquireMemory reserves n bytes, waiting for concurrent reservations to be
// released. A single request above the limit fails with *MemoryLimitError
// since it could never be granted.
func (c *Controller) AcquireMemory(ctx context.Context, n int64) error {
	if c == nil || n <= 0 {
		return nil
	}
	if c.mem != nil {
		if n > c.limit {
			return &MemoryLimitError{Requested: n, Limit: c.limit}
		}
		if err := c.mem.Acquire(ctx, n); err != nil {
			return err
		}
	}
	c.used.Add(n)
	return nil
}

// ReleaseMemory returns a reservation made by AcquireMemory.
func (c *Controller) ReleaseMemory(n int64) {
	if c == nil || n <= 0 {
		return
	}
	if c.mem != nil {
		c.mem.Release(n)
	}
	c.used.Add(-n)
}

// MemoryUsage returns the bytes currently reserved.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.used.Load()
}

// AcquireWrite blocks until rows more rows may be written back.
func (c *Controller) AcquireWrite(ctx context.Context, rows int) error {
	if c == nil {
		return nil
	}
	return wait(ctx, c.rows, rows)
}

// AcquireIO blocks until n more output bytes may be written.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil {
		return nil
	}
	return wait(ctx, c.bytes, n)
}

// wait takes n tokens in burst-sized steps; rate.Limiter rejects a single
// request above its burst.
func wait(ctx context.Context, l *rate.Limiter, n int) error {
	if l == nil {
		return ctx.Err()
	}
	for n > 0 {
		step := min(n, l.Burst())
		if err := l.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
