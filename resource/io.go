package resource

import (
	"context"
	"io"
)

// ThrottledWriter charges every write against the controller's IO limit
// before passing it on.
type ThrottledWriter struct {
	ctx     context.Context
	w       io.Writer
	rc      *Controller
	written int64
}

// NewThrottledWriter wraps w. Writes fail once ctx is canceled.
func NewThrottledWriter(ctx context.Context, w io.Writer, rc *Controller) *ThrottledWriter {
	return &ThrottledWriter{ctx: ctx, w: w, rc: rc}
}

func (t *ThrottledWriter) Write(p []byte) (int, error) {
	if err := t.rc.AcquireIO(t.ctx, len(p)); err != nil {
		return 0, err
	}
	n, err := t.w.Write(p)
	t.written += int64(n)
	return n, err
}

// Written returns the bytes passed through so far.
func (t *ThrottledWriter) Written() int64 { return t.written }
