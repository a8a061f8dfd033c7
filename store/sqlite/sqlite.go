// Package sqlite implements a group-oriented store on a single SQLite file.
//
// Every group is a row of qv_groups; its bases live in qv_bases keyed by
// (group_id, pos) with one column per feature channel. qv_columns records
// which channels each group actually carries, so channels added for one
// group are not reported as present for another. The VQ index column is
// added on the first write.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hupe1980/qvcompress/feature"
	"github.com/hupe1980/qvcompress/store"
	_ "modernc.org/sqlite" // SQLite driver
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS qv_groups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT UNIQUE NOT NULL,
	row_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS qv_columns (
	group_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (group_id, name),
	FOREIGN KEY (group_id) REFERENCES qv_groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS qv_bases (
	group_id INTEGER NOT NULL,
	pos INTEGER NOT NULL,
	PRIMARY KEY (group_id, pos),
	FOREIGN KEY (group_id) REFERENCES qv_groups(id) ON DELETE CASCADE
);
`

// maxIndex is the largest value of the unsigned 8-bit VQ column.
const maxIndex = 255

// Option configures a Store.
type Option func(*Store)

// WithReadOnly rejects every write.
func WithReadOnly() Option {
	return func(s *Store) { s.readOnly = true }
}

// Store is a group-oriented store backed by SQLite.
type Store struct {
	path     string
	db       *sql.DB
	readOnly bool

	mu      sync.Mutex
	columns map[string]struct{} // columns of qv_bases
}

var _ store.GroupAppender = (*Store)(nil)

// Open opens or creates the database at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// A single connection serializes writers; the store is used by one run at a time.
	db.SetMaxOpenConns(1)

	s := &Store{path: path, db: db, columns: make(map[string]struct{})}
	for _, fn := range opts {
		fn(s)
	}

	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Create creates a new database at path and fails if the file exists.
func Create(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("sqlite: %s: %w", path, os.ErrExist)
	}
	return Open(ctx, path)
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	if !s.readOnly {
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			return fmt.Errorf("sqlite: journal mode: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("sqlite: create tables: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info('qv_bases')")
	if err != nil {
		return fmt.Errorf("sqlite: table info: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		s.columns[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(s.columns) == 0 {
		return &store.UnsupportedStoreError{Path: s.path, Reason: "no qv_bases table"}
	}
	return nil
}

// Name implements store.Store.
func (s *Store) Name() string { return s.path }

// Kind implements store.Store.
func (s *Store) Kind() store.Kind { return store.GroupOriented }

// Columns implements store.Store.
func (s *Store) Columns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT name FROM qv_columns WHERE name != ? ORDER BY name", store.IndexColumn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: columns: %w", err)
	}
	return scanStrings(rows)
}

// Groups implements store.GroupStore.
func (s *Store) Groups(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM qv_groups ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: groups: %w", err)
	}
	return scanStrings(rows)
}

// RowCount implements store.GroupStore.
func (s *Store) RowCount(ctx context.Context, group string, _ feature.Schema) (int, error) {
	_, n, err := s.lookup(ctx, group)
	return n, err
}

// MissingColumns implements store.GroupStore.
func (s *Store) MissingColumns(ctx context.Context, group string, schema feature.Schema) ([]string, error) {
	id, _, err := s.lookup(ctx, group)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM qv_columns WHERE group_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: columns of %s: %w", group, err)
	}
	present, err := scanStrings(rows)
	if err != nil {
		return nil, err
	}
	return schema.Missing(present), nil
}

// ReadColumns implements store.GroupStore.
func (s *Store) ReadColumns(ctx context.Context, group string, schema feature.Schema, start, end int) (*feature.Matrix, error) {
	id, n, err := s.lookup(ctx, group)
	if err != nil {
		return nil, err
	}
	if err := store.CheckRange(start, end, n); err != nil {
		return nil, err
	}
	if missing, err := s.MissingColumns(ctx, group, schema); err != nil {
		return nil, err
	} else if len(missing) > 0 {
		return nil, &store.MissingFeatureError{Store: s.path, Missing: missing}
	}

	cols := make([]string, schema.Len())
	for j, name := range schema {
		cols[j] = quoteIdent(name)
	}
	query := fmt.Sprintf("SELECT pos, %s FROM qv_bases WHERE group_id = ? AND pos >= ? AND pos < ? ORDER BY pos",
		strings.Join(cols, ", "))
	rows, err := s.db.QueryContext(ctx, query, id, start, end)
	if err != nil {
		return nil, fmt.Errorf("sqlite: read %s: %w", group, err)
	}
	defer rows.Close()

	m := feature.NewMatrix(end-start, schema.Len())
	dest := make([]any, schema.Len()+1)
	var pos int
	vals := make([]sql.NullFloat64, schema.Len())
	dest[0] = &pos
	for j := range vals {
		dest[j+1] = &vals[j]
	}

	read := 0
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("sqlite: read %s: %w", group, err)
		}
		for j, v := range vals {
			if !v.Valid {
				return nil, fmt.Errorf("sqlite: %s has no %s value at %d", group, schema[j], pos)
			}
			m.Set(pos-start, j, v.Float64)
		}
		read++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if read != end-start {
		return nil, fmt.Errorf("sqlite: %s: read %d of %d rows", group, read, end-start)
	}
	return m, nil
}

// WriteIndex implements store.GroupStore.
func (s *Store) WriteIndex(ctx context.Context, group string, start, end int, index []int) error {
	if len(index) != end-start {
		return fmt.Errorf("%w: %d indices for %d rows", store.ErrInvalidRange, len(index), end-start)
	}
	m := feature.NewMatrix(len(index), 1)
	for i, v := range index {
		if v < 0 || v > maxIndex {
			return fmt.Errorf("sqlite: index %d does not fit the %s column", v, store.IndexColumn)
		}
		m.Set(i, 0, float64(v))
	}
	return s.update(ctx, group, feature.Schema{store.IndexColumn}, start, end, m, true)
}

// WriteFeatures implements store.GroupStore.
func (s *Store) WriteFeatures(ctx context.Context, group string, schema feature.Schema, start, end int, m *feature.Matrix) error {
	if m.Rows() != end-start || m.Cols() != schema.Len() {
		return feature.ErrShape
	}
	return s.update(ctx, group, schema, start, end, m, false)
}

// AppendGroup adds a group holding the columns of m, named by schema.
func (s *Store) AppendGroup(ctx context.Context, group string, schema feature.Schema, m *feature.Matrix) error {
	if s.readOnly {
		return store.ErrReadOnly
	}
	if m.Cols() != schema.Len() {
		return feature.ErrShape
	}
	if err := schema.Validate(); err != nil {
		return err
	}
	if err := s.ensureColumns(ctx, schema); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "INSERT INTO qv_groups (path, row_count) VALUES (?, ?)", group, m.Rows())
		if err != nil {
			return fmt.Errorf("sqlite: add group %s: %w", group, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, name := range schema {
			if _, err := tx.ExecContext(ctx, "INSERT INTO qv_columns (group_id, name) VALUES (?, ?)", id, name); err != nil {
				return err
			}
		}

		cols := make([]string, schema.Len())
		marks := make([]string, schema.Len())
		for j, name := range schema {
			cols[j] = quoteIdent(name)
			marks[j] = "?"
		}
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO qv_bases (group_id, pos, %s) VALUES (?, ?, %s)",
			strings.Join(cols, ", "), strings.Join(marks, ", ")))
		if err != nil {
			return err
		}
		defer stmt.Close()

		args := make([]any, schema.Len()+2)
		args[0] = id
		for i := 0; i < m.Rows(); i++ {
			args[1] = i
			for j, v := range m.Row(i) {
				args[j+2] = v
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("sqlite: add group %s row %d: %w", group, i, err)
			}
		}
		return nil
	})
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) update(ctx context.Context, group string, schema feature.Schema, start, end int, m *feature.Matrix, create bool) error {
	if s.readOnly {
		return store.ErrReadOnly
	}
	id, n, err := s.lookup(ctx, group)
	if err != nil {
		return err
	}
	if err := store.CheckRange(start, end, n); err != nil {
		return err
	}
	if create {
		if err := s.ensureColumns(ctx, schema); err != nil {
			return err
		}
	} else if missing, err := s.MissingColumns(ctx, group, schema); err != nil {
		return err
	} else if len(missing) > 0 {
		return &store.MissingFeatureError{Store: s.path, Missing: missing}
	}

	sets := make([]string, schema.Len())
	for j, name := range schema {
		sets[j] = quoteIdent(name) + " = ?"
	}
	query := fmt.Sprintf("UPDATE qv_bases SET %s WHERE group_id = ? AND pos = ?", strings.Join(sets, ", "))

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if create {
			for _, name := range schema {
				if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO qv_columns (group_id, name) VALUES (?, ?)", id, name); err != nil {
					return err
				}
			}
		}

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		args := make([]any, schema.Len()+2)
		args[schema.Len()] = id
		for i := 0; i < m.Rows(); i++ {
			for j, v := range m.Row(i) {
				args[j] = v
			}
			args[schema.Len()+1] = start + i
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("sqlite: update %s row %d: %w", group, start+i, err)
			}
		}
		return nil
	})
}

// ensureColumns adds missing channel columns to qv_bases.
func (s *Store) ensureColumns(ctx context.Context, schema feature.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range schema {
		if _, ok := s.columns[name]; ok {
			continue
		}
		typ := "REAL"
		if name == store.IndexColumn {
			typ = "INTEGER"
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE qv_bases ADD COLUMN %s %s", quoteIdent(name), typ)); err != nil {
			return fmt.Errorf("sqlite: add column %s: %w", name, err)
		}
		s.columns[name] = struct{}{}
	}
	return nil
}

func (s *Store) lookup(ctx context.Context, group string) (id int64, rows int, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT id, row_count FROM qv_groups WHERE path = ?", group).Scan(&id, &rows)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("%w: %s", store.ErrGroupNotFound, group)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("sqlite: lookup %s: %w", group, err)
	}
	return id, rows, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
