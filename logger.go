package qvcompress

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/qvcompress/codebook"
	"github.com/hupe1980/qvcompress/diag"
	"github.com/hupe1980/qvcompress/quantize"
)

// Logger wraps slog.Logger with qvcompress-specific context.
// This provides structured logging with consistent field names.
//
// Logger is the diagnostics sink of the pipeline: non-fatal conditions arrive
// through Warn as one WARN record carrying a code attribute.
type Logger struct {
	*slog.Logger
}

var _ diag.Sink = (*Logger)(nil)

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that writes JSON records to w.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that writes human-readable text to w.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithStore adds the store path.
func (l *Logger) WithStore(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("store", path),
	}
}

// WithCodes adds the codebook size.
func (l *Logger) WithCodes(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("codes", k),
	}
}

// WithRun tags every record with the run id.
func (l *Logger) WithRun(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run", id),
	}
}

// Warn implements diag.Sink. It shadows slog.Logger.Warn; use WarnContext
// for free-form messages.
func (l *Logger) Warn(ctx context.Context, code string, attrs ...slog.Attr) {
	l.LogAttrs(ctx, slog.LevelWarn, warningMessage(code), append([]slog.Attr{slog.String("code", code)}, attrs...)...)
}

func warningMessage(code string) string {
	switch code {
	case diag.CodePartialTraining:
		return "store holds fewer observations than requested"
	case diag.CodeRLEUnsupported:
		return "run-length tag encoding ignored for group-oriented store"
	case diag.CodeEmptyCluster:
		return "empty cluster reseeded"
	default:
		return code
	}
}

// LogTraining logs a codebook training run.
func (l *Logger) LogTraining(ctx context.Context, res *codebook.Result, err error) {
	if err != nil {
		l.ErrorContext(ctx, "codebook training failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "codebook trained",
		"codes", res.Codebook.Len(),
		"features", res.Codebook.Schema().String(),
		"observations", res.Observations,
		"dropped", res.Dropped,
		"iterations", res.Iterations,
		"converged", res.Converged,
	)
	l.DebugContext(ctx, "training scale",
		"scale", res.Scale,
	)
}

// LogEncode logs a quantization run.
func (l *Logger) LogEncode(ctx context.Context, stats *quantize.Stats, output string, err error) {
	if err != nil {
		attrs := []any{"error", err}
		if stats != nil {
			attrs = append(attrs, "chunks_written", stats.Chunks, "rows_written", stats.Rows)
		}
		l.ErrorContext(ctx, "encode failed", attrs...)
		return
	}
	attrs := []any{
		"chunks", stats.Chunks,
		"rows", stats.Rows,
	}
	if output != "" {
		attrs = append(attrs, "records", stats.Records, "output", output)
	}
	l.InfoContext(ctx, "encode completed", attrs...)
}
