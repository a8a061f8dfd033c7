package quantize

import (
	"github.com/hupe1980/qvcompress/codec"
	"github.com/hupe1980/qvcompress/diag"
	"github.com/hupe1980/qvcompress/resource"
)

// Program identifies the run in the @PG line of rewritten record stores.
type Program struct {
	ID      string
	Name    string
	Version string
	CmdLine string
}

type options struct {
	workers   int
	overwrite bool
	rle       bool
	sink      diag.Sink
	metrics   diag.Metrics
	resources *resource.Controller
	codec     codec.Codec
	program   Program
}

// Option configures a Quantizer.
type Option func(*options)

// WithWorkers splits nearest-centroid search across n goroutines.
// Defaults to the resource controller's worker count, or 1.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithOverwrite replaces raw feature values with their codebook
// reconstruction. This is destructive.
func WithOverwrite(enabled bool) Option {
	return func(o *options) { o.overwrite = enabled }
}

// WithRunLengthTag attaches the run-length encoded DeletionTag to every
// record. Group-oriented stores ignore it with a warning.
func WithRunLengthTag(enabled bool) Option {
	return func(o *options) { o.rle = enabled }
}

// WithSink routes non-fatal conditions to s.
func WithSink(s diag.Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithMetrics records per-chunk measurements.
func WithMetrics(m diag.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithResources applies the controller's worker count and write limits.
func WithResources(c *resource.Controller) Option {
	return func(o *options) { o.resources = c }
}

// WithCodec picks the codec used to embed the codebook in record headers.
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithProgram sets the @PG line written to record headers.
func WithProgram(p Program) Option {
	return func(o *options) { o.program = p }
}
