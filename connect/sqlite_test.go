package connect

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// newTestDB creates a SQLite file with a people table and returns the
// data directory containing it.
func newTestDB(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()

	db, err := sql.Open("sqlite", filepath.Join(dataDir, "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE people (name TEXT, age INTEGER, score REAL)`,
		`INSERT INTO people VALUES ('ana', 30, 91.5)`,
		`INSERT INTO people VALUES ('bo', 41, 77.0)`,
		`INSERT INTO people VALUES ('cy', 25, NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return dataDir
}

func TestSQLiteTest(t *testing.T) {
	dataDir := newTestDB(t)
	conn := NewSQLite("test", map[string]any{"file_path": "test.db"}, dataDir)
	defer conn.Close()

	if err := conn.Test(context.Background()); err != nil {
		t.Errorf("Test: %v", err)
	}
}

func TestSQLiteQuery(t *testing.T) {
	dataDir := newTestDB(t)
	conn := NewSQLite("test", map[string]any{"file_path": "test.db"}, dataDir)
	defer conn.Close()

	res, err := conn.Query(context.Background(), `SELECT name, age, score FROM people ORDER BY age`, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	wantCols := []string{"name", "age", "score"}
	for i, want := range wantCols {
		if res.Columns[i] != want {
			t.Errorf("Columns[%d] = %q, want %q", i, res.Columns[i], want)
		}
	}
	wantTypes := []string{"TEXT", "INTEGER", "REAL"}
	for i, want := range wantTypes {
		if res.Types[i] != want {
			t.Errorf("Types[%d] = %q, want %q", i, res.Types[i], want)
		}
	}
	if len(res.Rows) != 3 {
		t.Fatalf("Rows length = %d, want 3", len(res.Rows))
	}
	if got := res.Rows[0]["name"]; got != "cy" {
		t.Errorf("row 0 name = %v, want cy", got)
	}
	if got := res.Rows[1]["age"]; got != int64(30) {
		t.Errorf("row 1 age = %v (%T), want 30", got, got)
	}
	if got := res.Rows[1]["score"]; got != 91.5 {
		t.Errorf("row 1 score = %v, want 91.5", got)
	}
	if got := res.Rows[0]["score"]; got != nil {
		t.Errorf("row 0 score = %v, want nil", got)
	}
}

func TestSQLiteQueryNamedParams(t *testing.T) {
	dataDir := newTestDB(t)
	conn := NewSQLite("test", map[string]any{"file_path": "test.db"}, dataDir)
	defer conn.Close()

	res, err := conn.Query(context.Background(),
		`SELECT name FROM people WHERE age > :min ORDER BY name`,
		map[string]any{"min": 28})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("Rows length = %d, want 2", len(res.Rows))
	}
	if got := res.Rows[0]["name"]; got != "ana" {
		t.Errorf("row 0 name = %v, want ana", got)
	}
}

func TestSQLiteQueryExpressionType(t *testing.T) {
	dataDir := newTestDB(t)
	conn := NewSQLite("test", map[string]any{"file_path": "test.db"}, dataDir)
	defer conn.Close()

	res, err := conn.Query(context.Background(), `SELECT COUNT(*) AS n FROM people`, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	// No declared type, so the type comes from the value.
	if res.Types[0] != "BIGINT" {
		t.Errorf("Types[0] = %q, want BIGINT", res.Types[0])
	}
	if got := res.Rows[0]["n"]; got != int64(3) {
		t.Errorf("n = %v, want 3", got)
	}
}

func TestSQLiteRejectsWrites(t *testing.T) {
	dataDir := newTestDB(t)
	conn := NewSQLite("test", map[string]any{"file_path": "test.db"}, dataDir)
	defer conn.Close()

	if _, err := conn.Query(context.Background(), `INSERT INTO people VALUES ('dee', 50, 1.0)`, nil); err == nil {
		t.Fatal("INSERT through read-only connector succeeded, want error")
	}
}

func TestSQLiteSchema(t *testing.T) {
	dataDir := newTestDB(t)
	conn := NewSQLite("test", map[string]any{"file_path": "test.db"}, dataDir)
	defer conn.Close()

	schemas, err := conn.Schema(context.Background(), false)
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if len(schemas) != 1 {
		t.Fatalf("schemas length = %d, want 1", len(schemas))
	}
	if schemas[0].Schema != "main" {
		t.Errorf("schema name = %q, want main", schemas[0].Schema)
	}
	if len(schemas[0].Tables) != 1 {
		t.Fatalf("tables length = %d, want 1", len(schemas[0].Tables))
	}
	table := schemas[0].Tables[0]
	if table.Table != "people" {
		t.Errorf("table name = %q, want people", table.Table)
	}
	wantCols := []Column{{"name", "TEXT"}, {"age", "INTEGER"}, {"score", "REAL"}}
	for i, want := range wantCols {
		if table.Columns[i] != want {
			t.Errorf("Columns[%d] = %+v, want %+v", i, table.Columns[i], want)
		}
	}
}

func TestSQLiteSchemaCache(t *testing.T) {
	dataDir := newTestDB(t)
	ctx := context.Background()
	conn := NewSQLite("test", map[string]any{"file_path": "test.db"}, dataDir)
	defer conn.Close()

	if _, err := conn.Schema(ctx, false); err != nil {
		t.Fatalf("Schema: %v", err)
	}

	// Add a table through a separate writable handle.
	db, err := sql.Open("sqlite", filepath.Join(dataDir, "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE extras (id INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	db.Close()

	schemas, err := conn.Schema(ctx, false)
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if len(schemas[0].Tables) != 1 {
		t.Errorf("cached tables length = %d, want 1", len(schemas[0].Tables))
	}

	schemas, err = conn.Schema(ctx, true)
	if err != nil {
		t.Fatalf("Schema force refresh: %v", err)
	}
	if len(schemas[0].Tables) != 2 {
		t.Errorf("refreshed tables length = %d, want 2", len(schemas[0].Tables))
	}
}

func TestSQLiteValidate(t *testing.T) {
	dataDir := t.TempDir()

	conn := NewSQLite("test", map[string]any{}, dataDir)
	if errs := conn.Validate(); len(errs) != 1 || errs[0] != "file_path is required" {
		t.Errorf("Validate without file_path = %v", errs)
	}

	conn = NewSQLite("test", map[string]any{"file_path": "no/such/dir/test.db"}, dataDir)
	if errs := conn.Validate(); len(errs) != 1 {
		t.Errorf("Validate with missing parent = %v", errs)
	}

	conn = NewSQLite("test", map[string]any{"file_path": "test.db"}, dataDir)
	if errs := conn.Validate(); len(errs) != 0 {
		t.Errorf("Validate with valid config = %v", errs)
	}
}
