// Package connect manages warehouse connections for query execution.
//
// A Manager caches named connectors and lazily initializes them from the
// control plane's internal API. Two connector implementations are provided:
// Postgres over a pgx pool and SQLite over the pure-Go driver, which also
// backs databases generated from CSV uploads.
package connect

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound reports that the control plane has no connection with the
// requested name.
var ErrNotFound = errors.New("connection not found")

// Column is one column of a warehouse table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table is one table with its columns in ordinal order.
type Table struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
}

// Schema groups the tables of one database schema.
type Schema struct {
	Schema string  `json:"schema"`
	Tables []Table `json:"tables"`
}

// QueryResult holds the outcome of a SQL query. Rows are keyed by column
// name; Types carries one SQL type name per column.
type QueryResult struct {
	Columns []string         `json:"columns"`
	Types   []string         `json:"types"`
	Rows    []map[string]any `json:"rows"`
}

// Connector executes queries against one warehouse connection.
type Connector interface {
	// Test verifies the connection by running a trivial query.
	Test(ctx context.Context) error
	// Schema returns the warehouse layout. Results are cached for five
	// minutes; forceRefresh bypasses the cache.
	Schema(ctx context.Context, forceRefresh bool) ([]Schema, error)
	// Query executes sql with optional named parameters.
	Query(ctx context.Context, sql string, params map[string]any) (*QueryResult, error)
	// Validate checks the connector's config, returning one message per
	// problem. An empty slice means the config is usable.
	Validate() []string
	// Close releases the underlying pool or file handle.
	Close() error
}

const schemaTTL = 5 * time.Minute

// schemaCache memoizes a connector's schema fetch with a TTL.
type schemaCache struct {
	mu      sync.Mutex
	schemas []Schema
	fetched time.Time
}

func (c *schemaCache) load(ctx context.Context, force bool, fetch func(context.Context) ([]Schema, error)) ([]Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !force && c.schemas != nil && time.Since(c.fetched) < schemaTTL {
		return c.schemas, nil
	}
	schemas, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.schemas = schemas
	c.fetched = time.Now()
	return schemas, nil
}

// inferType maps a driver value to a SQL type name, for drivers that do
// not report column types on every result.
func inferType(v any) string {
	switch v.(type) {
	case nil:
		return "NULL"
	case bool:
		return "BOOLEAN"
	case time.Time:
		return "TIMESTAMP"
	case int, int32, int64:
		return "BIGINT"
	case float32, float64:
		return "DOUBLE"
	case string:
		return "VARCHAR"
	case []byte:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// inferColumnTypes fills in a type per column by inspecting the first
// non-nil value. Columns with only NULLs report NULL.
func inferColumnTypes(columns []string, rows []map[string]any) []string {
	types := make([]string, len(columns))
	for i, col := range columns {
		types[i] = "NULL"
		for _, row := range rows {
			if v, ok := row[col]; ok && v != nil {
				types[i] = inferType(v)
				break
			}
		}
	}
	return types
}
