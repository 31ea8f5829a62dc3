package connect

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// CSVFile is one uploaded file: its original name and raw bytes.
type CSVFile struct {
	Filename string
	Content  []byte
}

// CSVTableInfo describes one table generated from a CSV file.
type CSVTableInfo struct {
	Filename  string   `json:"filename"`
	TableName string   `json:"table_name"`
	RowCount  int      `json:"row_count"`
	Columns   []Column `json:"columns"`
}

// CSVUploadResult is the outcome of ProcessCSVUpload. GeneratedDBPath is
// relative to the data directory, suitable for a SQLite connection config.
type CSVUploadResult struct {
	GeneratedDBPath string         `json:"generated_db_path"`
	Files           []CSVTableInfo `json:"files"`
}

// csvConnectionDir returns the storage directory for one CSV connection:
// <dataDir>/csv_connections/<company>/<mode>/<name>.
func csvConnectionDir(dataDir string, companyID int, mode, name string) string {
	return filepath.Join(dataDir, "csv_connections", strconv.Itoa(companyID), mode, name)
}

// SanitizeTableName converts a filename into a valid SQL table name:
// extension stripped, spaces and hyphens become underscores, remaining
// non-alphanumerics removed, lowercased, digit-leading names prefixed with
// t_, capped at 63 characters.
func SanitizeTableName(filename string) string {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")

	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	name = strings.ToLower(b.String())

	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	if name == "" {
		name = "table_data"
	}
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

// uniqueTableNames maps each filename to a sanitized table name, resolving
// collisions with numeric suffixes.
func uniqueTableNames(filenames []string) map[string]string {
	names := make(map[string]string, len(filenames))
	used := make(map[string]bool, len(filenames))
	for _, filename := range filenames {
		base := SanitizeTableName(filename)
		final := base
		for counter := 1; used[final]; counter++ {
			suffix := "_" + strconv.Itoa(counter)
			trimmed := base
			if len(trimmed)+len(suffix) > 63 {
				trimmed = trimmed[:63-len(suffix)]
			}
			final = trimmed + suffix
		}
		names[filename] = final
		used[final] = true
	}
	return names
}

// ProcessCSVUpload stores the uploaded files and generates a SQLite
// database with one table per CSV. With replaceExisting the connection's
// previous files and database are dropped first; otherwise an existing
// connection is an error. Any ingestion failure removes the connection
// directory.
func ProcessCSVUpload(dataDir string, companyID int, mode, name string, files []CSVFile, replaceExisting bool) (*CSVUploadResult, error) {
	connDir := csvConnectionDir(dataDir, companyID, mode, name)
	filesDir := filepath.Join(connDir, "files")
	dbPath := filepath.Join(connDir, "database.db")

	if _, err := os.Stat(connDir); err == nil {
		if !replaceExisting {
			return nil, fmt.Errorf("connection %q already has data, use replace_existing to overwrite", name)
		}
		if err := os.RemoveAll(filesDir); err != nil {
			return nil, fmt.Errorf("clear existing files: %w", err)
		}
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("clear existing database: %w", err)
		}
	}

	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create connection directory: %w", err)
	}

	filenames := make([]string, len(files))
	for i, f := range files {
		filenames[i] = f.Filename
	}
	tableNames := uniqueTableNames(filenames)

	for _, f := range files {
		dst := filepath.Join(filesDir, filepath.Base(f.Filename))
		if err := os.WriteFile(dst, f.Content, 0o644); err != nil {
			_ = os.RemoveAll(connDir)
			return nil, fmt.Errorf("save uploaded file %s: %w", f.Filename, err)
		}
	}

	infos, err := buildDatabase(dbPath, files, tableNames)
	if err != nil {
		_ = os.RemoveAll(connDir)
		return nil, fmt.Errorf("create uploaded database: %w", err)
	}

	return &CSVUploadResult{
		GeneratedDBPath: path.Join("csv_connections", strconv.Itoa(companyID), mode, name, "database.db"),
		Files:           infos,
	}, nil
}

func buildDatabase(dbPath string, files []CSVFile, tableNames map[string]string) ([]CSVTableInfo, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	infos := make([]CSVTableInfo, 0, len(files))
	for _, f := range files {
		info, err := loadCSVTable(db, tableNames[f.Filename], f)
		if err != nil {
			return nil, fmt.Errorf("import %s: %w", f.Filename, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func loadCSVTable(db *sql.DB, tableName string, f CSVFile) (CSVTableInfo, error) {
	r := csv.NewReader(bytes.NewReader(f.Content))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return CSVTableInfo{}, fmt.Errorf("parse CSV: %w", err)
	}
	if len(records) == 0 {
		return CSVTableInfo{}, fmt.Errorf("no header row")
	}

	header := columnNames(records[0])
	dataRows := records[1:]
	colTypes := sniffColumnTypes(len(header), dataRows)

	defs := make([]string, len(header))
	for i, col := range header {
		defs[i] = quoteIdent(col) + " " + colTypes[i]
	}
	if _, err := db.Exec(fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(tableName), strings.Join(defs, ", "))); err != nil {
		return CSVTableInfo{}, fmt.Errorf("create table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return CSVTableInfo{}, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(header)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %s VALUES (%s)`, quoteIdent(tableName), placeholders))
	if err != nil {
		return CSVTableInfo{}, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range dataRows {
		args := make([]any, len(header))
		for i := range header {
			var raw string
			if i < len(record) {
				raw = record[i]
			}
			args[i] = convertValue(raw, colTypes[i])
		}
		if _, err := stmt.Exec(args...); err != nil {
			return CSVTableInfo{}, fmt.Errorf("insert row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return CSVTableInfo{}, fmt.Errorf("commit insert: %w", err)
	}

	columns := make([]Column, len(header))
	for i, col := range header {
		columns[i] = Column{Name: col, Type: colTypes[i]}
	}
	return CSVTableInfo{
		Filename:  f.Filename,
		TableName: tableName,
		RowCount:  len(dataRows),
		Columns:   columns,
	}, nil
}

// columnNames cleans a header row: trimmed, blanks replaced with
// positional names, duplicates uniquified with numeric suffixes.
func columnNames(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" {
			name = "column" + strconv.Itoa(i)
		}
		final := name
		for counter := 1; used[final]; counter++ {
			final = name + "_" + strconv.Itoa(counter)
		}
		names[i] = final
		used[final] = true
	}
	return names
}

// sniffColumnTypes infers INTEGER, REAL, or TEXT per column. Blank values
// are ignored; a column with only blanks is TEXT.
func sniffColumnTypes(numCols int, rows [][]string) []string {
	canInt := make([]bool, numCols)
	canReal := make([]bool, numCols)
	seen := make([]bool, numCols)
	for i := range canInt {
		canInt[i] = true
		canReal[i] = true
	}

	for _, row := range rows {
		for i := 0; i < numCols && i < len(row); i++ {
			v := strings.TrimSpace(row[i])
			if v == "" {
				continue
			}
			seen[i] = true
			if canInt[i] {
				if _, err := strconv.ParseInt(v, 10, 64); err != nil {
					canInt[i] = false
				}
			}
			if canReal[i] {
				if _, err := strconv.ParseFloat(v, 64); err != nil {
					canReal[i] = false
				}
			}
		}
	}

	types := make([]string, numCols)
	for i := range types {
		switch {
		case !seen[i]:
			types[i] = "TEXT"
		case canInt[i]:
			types[i] = "INTEGER"
		case canReal[i]:
			types[i] = "REAL"
		default:
			types[i] = "TEXT"
		}
	}
	return types
}

// convertValue parses a CSV cell for insertion. Blanks become NULL.
func convertValue(raw, colType string) any {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	switch colType {
	case "INTEGER":
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case "REAL":
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// DeleteCSVConnection removes a CSV connection's files and database.
// Returns false when the connection had no data.
func DeleteCSVConnection(dataDir string, companyID int, mode, name string) (bool, error) {
	connDir := csvConnectionDir(dataDir, companyID, mode, name)
	if _, err := os.Stat(connDir); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.RemoveAll(connDir); err != nil {
		return false, fmt.Errorf("delete connection data: %w", err)
	}
	return true, nil
}

// CSVConnectionInfo reads back table metadata for an existing CSV
// connection. Returns nil when the connection has no generated database.
func CSVConnectionInfo(ctx context.Context, dataDir string, companyID int, mode, name string) (*CSVUploadResult, error) {
	connDir := csvConnectionDir(dataDir, companyID, mode, name)
	filesDir := filepath.Join(connDir, "files")
	dbPath := filepath.Join(connDir, "database.db")

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, nil
	}

	var csvFiles []string
	if entries, err := os.ReadDir(filesDir); err == nil {
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
				csvFiles = append(csvFiles, e.Name())
			}
		}
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	infos := make([]CSVTableInfo, 0, len(tables))
	for _, table := range tables {
		var count int
		if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(table))).Scan(&count); err != nil {
			return nil, fmt.Errorf("count rows in %s: %w", table, err)
		}

		colRows, err := db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table)
		if err != nil {
			return nil, fmt.Errorf("table info for %s: %w", table, err)
		}
		var columns []Column
		for colRows.Next() {
			var c Column
			if err := colRows.Scan(&c.Name, &c.Type); err != nil {
				colRows.Close()
				return nil, fmt.Errorf("scan column: %w", err)
			}
			columns = append(columns, c)
		}
		if err := colRows.Err(); err != nil {
			colRows.Close()
			return nil, fmt.Errorf("iterate columns: %w", err)
		}
		colRows.Close()

		filename := table + ".csv"
		for _, f := range csvFiles {
			if SanitizeTableName(f) == table {
				filename = f
				break
			}
		}
		infos = append(infos, CSVTableInfo{
			Filename:  filename,
			TableName: table,
			RowCount:  count,
			Columns:   columns,
		})
	}

	return &CSVUploadResult{
		GeneratedDBPath: path.Join("csv_connections", strconv.Itoa(companyID), mode, name, "database.db"),
		Files:           infos,
	}, nil
}
