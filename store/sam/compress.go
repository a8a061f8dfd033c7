package sam

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression of a SAM stream, picked from the file suffix.
type Compression int

const (
	Plain Compression = iota
	Gzip
	Zstd
)

// CompressionOf returns the compression implied by path.
func CompressionOf(path string) Compression {
	p := strings.ToLower(path)
	switch {
	case strings.HasSuffix(p, ".gz"):
		return Gzip
	case strings.HasSuffix(p, ".zst"):
		return Zstd
	default:
		return Plain
	}
}

// Suffix returns the file suffix after ".sam".
func (c Compression) Suffix() string {
	switch c {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// DefaultOutputPath derives the encode output from the input path:
// movie.sam.gz becomes movie.vq.sam.gz.
func DefaultOutputPath(input string) string {
	c := CompressionOf(input)
	base := input[:len(input)-len(c.Suffix())]
	if strings.HasSuffix(strings.ToLower(base), ".sam") {
		base = base[:len(base)-len(".sam")]
	}
	return base + ".vq.sam" + c.Suffix()
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error { return r.close() }

func newReader(r io.ReadCloser, c Compression) (io.ReadCloser, error) {
	switch c {
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		return readCloser{Reader: zr, close: func() error {
			_ = zr.Close()
			return r.Close()
		}}, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		return readCloser{Reader: zr, close: func() error {
			zr.Close()
			return r.Close()
		}}, nil
	default:
		return r, nil
	}
}

// newCompressor returns a writer compressing into w. Closing it flushes the
// stream but leaves w open.
func newCompressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		return zstd.NewWriter(w)
	default:
		return nopWriteCloser{w}, nil
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
