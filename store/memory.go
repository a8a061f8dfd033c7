package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/qvcompress/feature"
)

// MemoryStore is an in-memory GroupStore. It is useful for tests and for
// staging data before it is persisted. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	name   string
	order  []string
	groups map[string]*memoryGroup
}

type memoryGroup struct {
	rows    int
	columns map[string][]float64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name:   name,
		groups: make(map[string]*memoryGroup),
	}
}

// AddGroup appends a group holding the columns of m, named by schema.
func (s *MemoryStore) AddGroup(name string, schema feature.Schema, m *feature.Matrix) error {
	if m.Cols() != schema.Len() {
		return feature.ErrShape
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[name]; ok {
		return fmt.Errorf("store: group %q already exists", name)
	}
	g := &memoryGroup{rows: m.Rows(), columns: make(map[string][]float64, schema.Len())}
	for j, col := range schema {
		g.columns[col] = m.Col(j)
	}
	s.groups[name] = g
	s.order = append(s.order, name)
	return nil
}

// Column returns a copy of a column, including IndexColumn once written.
func (s *MemoryStore) Column(group, name string) ([]float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[group]
	if !ok {
		return nil, false
	}
	col, ok := g.columns[name]
	return slices.Clone(col), ok
}

// Name implements Store.
func (s *MemoryStore) Name() string { return s.name }

// Kind implements Store.
func (s *MemoryStore) Kind() Kind { return GroupOriented }

// Columns implements Store.
func (s *MemoryStore) Columns(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cols []string
	for _, name := range s.order {
		for col := range s.groups[name].columns {
			if col != IndexColumn && !slices.Contains(cols, col) {
				cols = append(cols, col)
			}
		}
	}
	slices.Sort(cols)
	return cols, nil
}

// Groups implements GroupStore.
func (s *MemoryStore) Groups(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order), nil
}

// RowCount implements GroupStore.
func (s *MemoryStore) RowCount(_ context.Context, group string, _ feature.Schema) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, err := s.group(group)
	if err != nil {
		return 0, err
	}
	return g.rows, nil
}

// MissingColumns implements GroupStore.
func (s *MemoryStore) MissingColumns(_ context.Context, group string, schema feature.Schema) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, err := s.group(group)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, name := range schema {
		if _, ok := g.columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// ReadColumns implements GroupStore.
func (s *MemoryStore) ReadColumns(_ context.Context, group string, schema feature.Schema, start, end int) (*feature.Matrix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, err := s.group(group)
	if err != nil {
		return nil, err
	}
	if err := CheckRange(start, end, g.rows); err != nil {
		return nil, err
	}

	m := feature.NewMatrix(end-start, schema.Len())
	for j, name := range schema {
		col, ok := g.columns[name]
		if !ok {
			return nil, &MissingFeatureError{Store: s.name, Missing: []string{name}}
		}
		for i := start; i < end; i++ {
			m.Set(i-start, j, col[i])
		}
	}
	return m, nil
}

// WriteIndex implements GroupStore.
func (s *MemoryStore) WriteIndex(_ context.Context, group string, start, end int, index []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(group)
	if err != nil {
		return err
	}
	if err := CheckRange(start, end, g.rows); err != nil {
		return err
	}
	if len(index) != end-start {
		return fmt.Errorf("%w: %d indices for %d rows", ErrInvalidRange, len(index), end-start)
	}

	col, ok := g.columns[IndexColumn]
	if !ok {
		col = make([]float64, g.rows)
		g.columns[IndexColumn] = col
	}
	for i, v := range index {
		col[start+i] = float64(v)
	}
	return nil
}

// WriteFeatures implements GroupStore.
func (s *MemoryStore) WriteFeatures(_ context.Context, group string, schema feature.Schema, start, end int, m *feature.Matrix) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(group)
	if err != nil {
		return err
	}
	if err := CheckRange(start, end, g.rows); err != nil {
		return err
	}
	if m.Rows() != end-start || m.Cols() != schema.Len() {
		return feature.ErrShape
	}
	for j, name := range schema {
		col, ok := g.columns[name]
		if !ok {
			return &MissingFeatureError{Store: s.name, Missing: []string{name}}
		}
		for i := start; i < end; i++ {
			col[i] = m.At(i-start, j)
		}
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) group(name string) (*memoryGroup, error) {
	g, ok := s.groups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, name)
	}
	return g, nil
}
