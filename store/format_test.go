package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"reads.qvdb", FormatSQLite},
		{"/data/Reads.SQLITE", FormatSQLite},
		{"cache.db", FormatSQLite},
		{"store.qvc", FormatColumnar},
		{"store.qvc/", FormatColumnar},
		{"s3://bucket/prefix", FormatColumnar},
		{"minio://bucket/prefix", FormatColumnar},
		{"aln.sam", FormatSAM},
		{"aln.sam.gz", FormatSAM},
		{"aln.sam.zst", FormatSAM},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := DetectFormat(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFormat_Unsupported(t *testing.T) {
	for _, path := range []string{"aln.bam", "aln.cmp.h5", "reads.txt"} {
		t.Run(path, func(t *testing.T) {
			f, err := DetectFormat(path)
			assert.Equal(t, FormatUnknown, f)

			var use *UnsupportedStoreError
			require.ErrorAs(t, err, &use)
			assert.Equal(t, path, use.Path)
			assert.NotEmpty(t, use.Reason)
		})
	}
}

func TestCheckRange(t *testing.T) {
	assert.NoError(t, CheckRange(0, 0, 0))
	assert.NoError(t, CheckRange(2, 5, 5))
	assert.ErrorIs(t, CheckRange(-1, 2, 5), ErrInvalidRange)
	assert.ErrorIs(t, CheckRange(3, 2, 5), ErrInvalidRange)
	assert.ErrorIs(t, CheckRange(0, 6, 5), ErrInvalidRange)
}
