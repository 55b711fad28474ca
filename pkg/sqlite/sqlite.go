// Package sqlite is a small read-only cursor API over database/sql and the pure go sqlite driver.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

var (
	ErrClosed = errors.New("sqlite: use of closed statement")
)

// Database owns a read-only connection to a sqlite file. Close releases it.
type Database struct {
	db   *sql.DB
	path string
}

// Open opens path read-only. It fails when the file does not exist or is not a sqlite database.
func Open(path string) (*Database, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("sqlite: open %s: is a directory", path)
	}

	dsn := url.URL{Scheme: "file", Path: abs, RawQuery: "mode=ro"}
	db, err := sql.Open("sqlite", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)

	// the file header is read lazily, query the schema so a file that is not a database fails here.
	var n int
	if err := db.QueryRow("SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	return &Database{db: db, path: abs}, nil
}

func (d *Database) Path() string {
	return d.path
}

func (d *Database) Close() error {
	return d.db.Close()
}

// HasTable reports whether a table or view with the given name exists.
func (d *Database) HasTable(name string) (bool, error) {
	var n int
	err := d.db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: lookup table %s: %w", name, err)
	}
	return n > 0, nil
}

// Prepare compiles and starts query. Invalid SQL or unknown tables fail here.
func (d *Database) Prepare(query string) (*Statement, error) {
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: prepare %q: %w", query, err)
	}
	return &Statement{rows: rows, query: query}, nil
}

// Statement is a forward-only cursor over the rows of a query.
type Statement struct {
	rows   *sql.Rows
	query  string
	row    []any
	done   bool
	closed bool
}

// Step advances to the next row. It returns false once the rows are exhausted.
func (s *Statement) Step() (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	if s.done {
		return false, nil
	}

	if !s.rows.Next() {
		s.done = true
		s.row = nil
		if err := s.rows.Err(); err != nil {
			return false, fmt.Errorf("sqlite: step %q: %w", s.query, err)
		}
		return false, nil
	}

	cols, err := s.rows.Columns()
	if err != nil {
		return false, fmt.Errorf("sqlite: step %q: %w", s.query, err)
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return false, fmt.Errorf("sqlite: scan %q: %w", s.query, err)
	}
	s.row = values
	return true, nil
}

func (s *Statement) column(col int) any {
	if col < 0 || col >= len(s.row) {
		return nil
	}
	return s.row[col]
}

// ColumnText returns the column as text, "" for NULL.
func (s *Statement) ColumnText(col int) string {
	switch v := s.column(col).(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// ColumnInt returns the column as an integer, 0 for NULL or non numeric text.
func (s *Statement) ColumnInt(col int) int64 {
	switch v := s.column(col).(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n
		}
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err == nil {
			return n
		}
	}
	return 0
}

func (s *Statement) ColumnBool(col int) bool {
	return s.ColumnInt(col) != 0
}

// ColumnBlob returns a copy of the column bytes, nil for NULL.
func (s *Statement) ColumnBlob(col int) []byte {
	switch v := s.column(col).(type) {
	case []byte:
		out := make([]byte, len(v))
		copy(out, v)
		return out
	case string:
		return []byte(v)
	}
	return nil
}

// ColumnIsNull reports whether the column of the current row is NULL.
func (s *Statement) ColumnIsNull(col int) bool {
	return s.column(col) == nil
}

func (s *Statement) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.row = nil
	return s.rows.Close()
}
