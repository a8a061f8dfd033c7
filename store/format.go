package store

import "strings"

// Format identifies a concrete store implementation.
type Format int

const (
	FormatUnknown Format = iota
	FormatSQLite
	FormatColumnar
	FormatSAM
)

func (f Format) String() string {
	switch f {
	case FormatSQLite:
		return "sqlite"
	case FormatColumnar:
		return "columnar"
	case FormatSAM:
		return "sam"
	default:
		return "unknown"
	}
}

// Remote URL schemes of columnar stores.
const (
	SchemeS3    = "s3://"
	SchemeMinIO = "minio://"
)

// DetectFormat picks the store format from a path or URL.
func DetectFormat(path string) (Format, error) {
	p := strings.ToLower(strings.TrimRight(path, "/"))

	switch {
	case strings.HasPrefix(p, SchemeS3), strings.HasPrefix(p, SchemeMinIO):
		return FormatColumnar, nil
	case strings.HasSuffix(p, ".qvc"):
		return FormatColumnar, nil
	case hasAnySuffix(p, ".qvdb", ".sqlite", ".sqlite3", ".db"):
		return FormatSQLite, nil
	case hasAnySuffix(p, ".sam", ".sam.gz", ".sam.zst"):
		return FormatSAM, nil
	case strings.HasSuffix(p, ".bam"):
		return FormatUnknown, &UnsupportedStoreError{Path: path, Reason: "BAM is not supported, convert to SAM"}
	case hasAnySuffix(p, ".cmp.h5", ".h5"):
		return FormatUnknown, &UnsupportedStoreError{Path: path, Reason: "HDF5 is not supported, import into a .qvdb or .qvc store"}
	default:
		return FormatUnknown, &UnsupportedStoreError{Path: path, Reason: "unrecognized extension"}
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
