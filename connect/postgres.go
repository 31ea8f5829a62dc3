package connect

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Connector backed by a lazily created pgx pool.
type Postgres struct {
	name    string
	config  map[string]any
	typeMap *pgtype.Map
	cache   schemaCache

	mu   sync.Mutex
	pool *pgxpool.Pool
}

var _ Connector = (*Postgres)(nil)

// NewPostgres creates a Postgres connector from a raw connection config
// with keys host, port, database, username, and password. The pool is not
// opened until the first operation.
func NewPostgres(name string, config map[string]any) *Postgres {
	return &Postgres{name: name, config: config, typeMap: pgtype.NewMap()}
}

func (p *Postgres) connString() string {
	host := stringField(p.config, "host")
	if host == "" {
		host = "localhost"
	}
	port, ok := portValue(p.config["port"])
	if !ok {
		port = 5432
	}
	username := stringField(p.config, "username")
	password := stringField(p.config, "password")

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + stringField(p.config, "database"),
	}
	if password != "" {
		u.User = url.UserPassword(username, password)
	} else {
		u.User = url.User(username)
	}
	return u.String()
}

func (p *Postgres) getPool(ctx context.Context) (*pgxpool.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		return p.pool, nil
	}
	cfg, err := pgxpool.ParseConfig(p.connString())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	cfg.MaxConns = 10
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	p.pool = pool
	return pool, nil
}

// Test verifies the connection by running SELECT 1.
func (p *Postgres) Test(ctx context.Context) error {
	pool, err := p.getPool(ctx)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("postgres: test connection: %w", err)
	}
	return nil
}

// Schema returns all user schemas with their tables and columns, reading
// information_schema and filtering out system schemas.
func (p *Postgres) Schema(ctx context.Context, forceRefresh bool) ([]Schema, error) {
	return p.cache.load(ctx, forceRefresh, p.fetchSchema)
}

func (p *Postgres) fetchSchema(ctx context.Context) ([]Schema, error) {
	pool, err := p.getPool(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT table_schema, table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name, ordinal_position`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch schema: %w", err)
	}
	defer rows.Close()

	var schemas []Schema
	for rows.Next() {
		var schemaName, tableName, columnName, dataType string
		if err := rows.Scan(&schemaName, &tableName, &columnName, &dataType); err != nil {
			return nil, fmt.Errorf("postgres: scan schema row: %w", err)
		}
		// Rows arrive ordered by schema, table, ordinal position, so new
		// groups always start at the tail.
		if len(schemas) == 0 || schemas[len(schemas)-1].Schema != schemaName {
			schemas = append(schemas, Schema{Schema: schemaName})
		}
		s := &schemas[len(schemas)-1]
		if len(s.Tables) == 0 || s.Tables[len(s.Tables)-1].Table != tableName {
			s.Tables = append(s.Tables, Table{Table: tableName})
		}
		t := &s.Tables[len(s.Tables)-1]
		t.Columns = append(t.Columns, Column{Name: columnName, Type: dataType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate schema rows: %w", err)
	}
	return schemas, nil
}

// Query executes sql and returns columns, types, and rows. Named
// parameters use @name placeholders.
func (p *Postgres) Query(ctx context.Context, sql string, params map[string]any) (*QueryResult, error) {
	pool, err := p.getPool(ctx)
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	if len(params) > 0 {
		rows, err = pool.Query(ctx, sql, pgx.NamedArgs(params))
	} else {
		rows, err = pool.Query(ctx, sql)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	types := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
		if dt, ok := p.typeMap.TypeForOID(fd.DataTypeOID); ok {
			types[i] = strings.ToUpper(dt.Name)
		}
	}

	out := []map[string]any{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres: read row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, v := range values {
			row[columns[i]] = normalizeValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate rows: %w", err)
	}

	// Unregistered OIDs fall back to value inspection.
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

// Validate checks required fields and the port range.
func (p *Postgres) Validate() []string {
	errs := []string{}
	if stringField(p.config, "database") == "" {
		errs = append(errs, "database is required")
	}
	if stringField(p.config, "username") == "" {
		errs = append(errs, "username is required")
	}
	// Password stays optional to allow trust and peer auth setups.
	if raw, ok := p.config["port"]; ok {
		port, valid := portValue(raw)
		if !valid {
			errs = append(errs, "port must be a valid integer")
		} else if port < 1 || port > 65535 {
			errs = append(errs, "port must be between 1 and 65535")
		}
	}
	return errs
}

// Close releases the pool if one was opened.
func (p *Postgres) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}

// normalizeValue converts pgx-specific values into JSON-friendly ones.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case pgtype.Numeric:
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}

// stringField reads a string config value; missing or non-string keys
// yield "".
func stringField(config map[string]any, key string) string {
	s, _ := config[key].(string)
	return s
}

// portValue coerces a JSON-decoded port (number or numeric string) to an
// int. The second return is false when the value cannot be parsed.
func portValue(raw any) (int, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
