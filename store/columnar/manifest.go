package columnar

import (
	"slices"
	"time"
)

const (
	// ManifestFileName is the blob holding the store layout.
	ManifestFileName = "manifest.json"
	// CurrentVersion is the version of the manifest format.
	CurrentVersion = 1
	// DefaultBlockRows is the number of values per column block.
	DefaultBlockRows = 65536
)

// Manifest describes the layout of a columnar store.
type Manifest struct {
	Version     int         `json:"version"`
	ID          uint64      `json:"id"` // Incremented on every save
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Compression string      `json:"compression"`
	BlockRows   int         `json:"block_rows"`
	Groups      []GroupInfo `json:"groups"`
}

// GroupInfo describes one group.
type GroupInfo struct {
	ID      int      `json:"id"`
	Path    string   `json:"path"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

func (m *Manifest) clone() *Manifest {
	out := *m
	out.Groups = make([]GroupInfo, len(m.Groups))
	for i, g := range m.Groups {
		g.Columns = slices.Clone(g.Columns)
		out.Groups[i] = g
	}
	return &out
}

func (m *Manifest) group(path string) (*GroupInfo, bool) {
	for i := range m.Groups {
		if m.Groups[i].Path == path {
			return &m.Groups[i], true
		}
	}
	return nil, false
}
