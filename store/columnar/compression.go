package columnar

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how column blocks are compressed.
type Compression uint8

const (
	CompressionNone Compression = iota
	// CompressionLZ4 favors speed.
	CompressionLZ4
	// CompressionZSTD favors ratio. QV columns are highly repetitive, so this
	// is the default.
	CompressionZSTD
)

var compressionNames = [...]string{"none", "lz4", "zstd"}

func (c Compression) String() string {
	if int(c) < len(compressionNames) {
		return compressionNames[c]
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression maps a name as written in manifests and flags. The empty
// name means none.
func ParseCompression(s string) (Compression, error) {
	s = strings.ToLower(s)
	if s == "" {
		return CompressionNone, nil
	}
	for i, name := range compressionNames {
		if name == s {
			return Compression(i), nil
		}
	}
	return 0, fmt.Errorf("columnar: unknown compression %q", s)
}

// EncodeAll and DecodeAll are safe for concurrent use, so one encoder and one
// decoder serve every store.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// A block is a 5 byte header, the little-endian value count and the method
// actually used, followed by the payload. Blocks that do not shrink to 90%
// of their size are kept raw, so the method may be none in any store.
const blockHeaderSize = 5

var errCorruptBlock = errors.New("columnar: corrupt block")

func encodeBlock(values []byte, c Compression) ([]byte, error) {
	var packed []byte
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(values)))
		n, err := lz4.CompressBlock(values, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("columnar: lz4: %w", err)
		}
		packed = buf[:n]
	case CompressionZSTD:
		packed = zstdEncoder.EncodeAll(values, nil)
	default:
		return nil, fmt.Errorf("columnar: unknown compression %d", c)
	}

	method, payload := c, packed
	if len(packed) == 0 || len(packed)*10 > len(values)*9 {
		method, payload = CompressionNone, values
	}

	out := make([]byte, blockHeaderSize, blockHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(out, uint32(len(values)))
	out[4] = byte(method)
	return append(out, payload...), nil
}

func decodeBlock(data []byte) ([]byte, error) {
	if len(data) < blockHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is too small for a header", errCorruptBlock, len(data))
	}
	n := int(binary.LittleEndian.Uint32(data))
	method, payload := Compression(data[4]), data[blockHeaderSize:]

	var (
		values []byte
		err    error
	)
	switch method {
	case CompressionNone:
		values = payload
	case CompressionLZ4:
		values = make([]byte, n)
		var m int
		m, err = lz4.UncompressBlock(payload, values)
		values = values[:max(m, 0)]
	case CompressionZSTD:
		values, err = zstdDecoder.DecodeAll(payload, make([]byte, 0, n))
	default:
		return nil, fmt.Errorf("%w: method %d", errCorruptBlock, method)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errCorruptBlock, method, err)
	}
	if len(values) != n {
		return nil, fmt.Errorf("%w: %d values, header says %d", errCorruptBlock, len(values), n)
	}
	return values, nil
}
