package connect

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLite is a Connector over a local SQLite file, used for uploaded-data
// connections. The database is opened read-only; writes happen only during
// CSV ingestion, which uses its own handle.
type SQLite struct {
	name    string
	config  map[string]any
	dataDir string
	cache   schemaCache

	mu sync.Mutex
	db *sql.DB
}

var _ Connector = (*SQLite)(nil)

// NewSQLite creates a SQLite connector. The config's file_path is resolved
// against dataDir when relative.
func NewSQLite(name string, config map[string]any, dataDir string) *SQLite {
	return &SQLite{name: name, config: config, dataDir: dataDir}
}

func (s *SQLite) resolvedPath() string {
	fp := stringField(s.config, "file_path")
	if fp == "" || filepath.IsAbs(fp) {
		return fp
	}
	return filepath.Join(s.dataDir, fp)
}

func (s *SQLite) getDB() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	// query_only makes every connection reject writes, the analog of the
	// read-only engine the product uses for uploaded data.
	dsn := "file:" + s.resolvedPath() + "?_pragma=query_only(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	s.db = db
	return db, nil
}

// Test verifies the database file is readable by running SELECT 1.
func (s *SQLite) Test(ctx context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("sqlite: test connection: %w", err)
	}
	return nil
}

// Schema returns the single main schema with all user tables.
func (s *SQLite) Schema(ctx context.Context, forceRefresh bool) ([]Schema, error) {
	return s.cache.load(ctx, forceRefresh, s.fetchSchema)
}

func (s *SQLite) fetchSchema(ctx context.Context) ([]Schema, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate tables: %w", err)
	}

	main := Schema{Schema: "main"}
	for _, name := range names {
		cols, err := s.tableColumns(ctx, db, name)
		if err != nil {
			return nil, err
		}
		main.Tables = append(main.Tables, Table{Table: name, Columns: cols})
	}
	return []Schema{main}, nil
}

func (s *SQLite) tableColumns(ctx context.Context, db *sql.DB, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: table info for %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("sqlite: scan column: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// Query executes sql and returns columns, types, and rows. Named
// parameters use :name, @name, or $name placeholders.
func (s *SQLite) Query(ctx context.Context, query string, params map[string]any) (*QueryResult, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	args := make([]any, 0, len(params))
	for k, v := range params {
		args = append(args, sql.Named(k, v))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlite: read columns: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("sqlite: read column types: %w", err)
	}
	types := make([]string, len(columns))
	for i, ct := range colTypes {
		types[i] = strings.ToUpper(ct.DatabaseTypeName())
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlite: scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, v := range values {
			row[columns[i]] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate rows: %w", err)
	}

	// Expression columns carry no declared type.
	for i, t := range types {
		if t == "" {
			types[i] = "NULL"
			for _, row := range out {
				if v := row[columns[i]]; v != nil {
					types[i] = inferType(v)
					break
				}
			}
		}
	}

	return &QueryResult{Columns: columns, Types: types, Rows: out}, nil
}

// Validate checks that file_path is set and its parent directory exists.
// The database file itself may not exist yet.
func (s *SQLite) Validate() []string {
	errs := []string{}
	fp := stringField(s.config, "file_path")
	if fp == "" {
		errs = append(errs, "file_path is required")
		return errs
	}
	parent := filepath.Dir(s.resolvedPath())
	if _, err := os.Stat(parent); err != nil {
		errs = append(errs, fmt.Sprintf("parent directory does not exist: %s", parent))
	}
	return errs
}

// Close releases the database handle if one was opened.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}
