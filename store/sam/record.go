package sam

import (
	"fmt"
	"strings"

	"github.com/hupe1980/qvcompress/store"
)

// ParseRecord parses one alignment line.
func ParseRecord(line string) (*store.Record, error) {
	parts := strings.Split(line, "\t")
	if len(parts) < store.NumFields {
		return nil, fmt.Errorf("sam: record has %d fields, want at least %d", len(parts), store.NumFields)
	}

	rec := &store.Record{Fields: parts[:store.NumFields:store.NumFields]}
	for _, raw := range parts[store.NumFields:] {
		t, err := parseTag(raw)
		if err != nil {
			return nil, fmt.Errorf("sam: record %s: %w", rec.Name(), err)
		}
		rec.Tags = append(rec.Tags, t)
	}
	return rec, nil
}

func parseTag(s string) (store.Tag, error) {
	if len(s) < 5 || s[2] != ':' || s[4] != ':' {
		return store.Tag{}, fmt.Errorf("malformed tag %q", s)
	}
	return store.Tag{Name: s[:2], Type: s[3], Value: s[5:]}, nil
}

// FormatRecord renders a record as one line without the trailing newline.
func FormatRecord(rec *store.Record) string {
	var b strings.Builder
	for i, f := range rec.Fields {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString(f)
	}
	for _, t := range rec.Tags {
		b.WriteByte('\t')
		b.WriteString(t.String())
	}
	return b.String()
}
