// Package autocomplete produces SQL editor completions and chat mention
// suggestions from warehouse schema metadata.
package autocomplete

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/minusxai/minusx/connect"
)

// Item is one Monaco-compatible completion suggestion.
type Item struct {
	Label         string `json:"label"`
	Kind          string `json:"kind"`
	Detail        string `json:"detail,omitempty"`
	Documentation string `json:"documentation,omitempty"`
	InsertText    string `json:"insert_text"`
	SortText      string `json:"sort_text,omitempty"`
}

// Database is one entry of the editor's schema payload: a database and
// the schemas it exposes.
type Database struct {
	Name    string           `json:"name,omitempty"`
	Schemas []connect.Schema `json:"schemas"`
}

var columnPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bSELECT\s+\w*$`),
	regexp.MustCompile(`(?i)\bWHERE\s+\w*$`),
	regexp.MustCompile(`(?i)\bGROUP\s+BY\s+\w*$`),
	regexp.MustCompile(`(?i)\bORDER\s+BY\s+\w*$`),
	regexp.MustCompile(`(?i)\bON\s+\w*$`),
	regexp.MustCompile(`,\s*\w*$`),
}

var tablePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bFROM\s+\w*$`),
	regexp.MustCompile(`(?i)\bJOIN\s+\w*$`),
	regexp.MustCompile(`(?i)\bINTO\s+\w*$`),
	regexp.MustCompile(`(?i)\bUPDATE\s+\w*$`),
}

var dotPrefix = regexp.MustCompile(`(\w+)\.\w*$`)

// Complete suggests completions for the SQL editor at the given cursor
// position. databaseName is carried by the editor request and currently
// unused. The result is never nil.
func Complete(query string, cursorOffset int, schemaData []Database, databaseName string) []Item {
	runes := []rune(query)
	if cursorOffset < 0 {
		cursorOffset = 0
	}
	if cursorOffset > len(runes) {
		cursorOffset = len(runes)
	}
	before := string(runes[:cursorOffset])

	// The frontend completes @references itself.
	if strings.HasSuffix(strings.TrimRightFunc(before, unicode.IsSpace), "@") {
		return []Item{}
	}

	scope := scanQuery(query)

	switch {
	case isDotContext(before):
		return dotCompletions(scope, schemaData, before)
	case isColumnContext(before):
		return columnCompletions(scope, schemaData)
	case isTableContext(before):
		return tableCompletions(scope, schemaData)
	default:
		return keywordCompletions()
	}
}

func isColumnContext(before string) bool {
	for _, p := range columnPatterns {
		if p.MatchString(before) {
			return true
		}
	}
	return false
}

func isTableContext(before string) bool {
	for _, p := range tablePatterns {
		if p.MatchString(before) {
			return true
		}
	}
	return false
}

func isDotContext(before string) bool {
	fields := strings.Fields(before)
	return len(fields) > 0 && strings.Contains(fields[len(fields)-1], ".")
}

// columnCompletions lists columns from the tables in scope, or from every
// table when the scope is empty. CTE columns follow, and a CTE shadows a
// schema table with the same name.
func columnCompletions(scope *sqlScope, schemaData []Database) []Item {
	items := []Item{}
	idx := 0

	inScope := foldSet(scope.tables)
	cteNames := foldSet(scope.cteOrder)

	for _, db := range schemaData {
		for _, schema := range db.Schemas {
			for _, table := range schema.Tables {
				if len(inScope) > 0 && !inScope[fold(table.Table)] {
					continue
				}
				if cteNames[fold(table.Table)] {
					continue
				}
				for _, col := range table.Columns {
					items = append(items, Item{
						Label:         col.Name,
						Kind:          "column",
						Detail:        "  " + table.Table,
						Documentation: fmt.Sprintf("Column from %s.%s", schema.Schema, table.Table),
						InsertText:    col.Name,
						SortText:      sortKey(idx),
					})
					idx++
				}
			}
		}
	}

	for _, cte := range scope.cteOrder {
		if len(inScope) > 0 && !inScope[fold(cte)] {
			continue
		}
		for _, col := range scope.cteCols[cte] {
			items = append(items, Item{
				Label:         col,
				Kind:          "cte",
				Detail:        "  " + cte + " (CTE)",
				Documentation: "Column from CTE " + cte,
				InsertText:    col,
				SortText:      sortKey(idx),
			})
			idx++
		}
	}

	return items
}

// tableCompletions lists schema names, tables both bare and qualified,
// and CTE names.
func tableCompletions(scope *sqlScope, schemaData []Database) []Item {
	items := []Item{}
	idx := 0
	seenSchemas := map[string]bool{}

	for _, db := range schemaData {
		for _, schema := range db.Schemas {
			if !seenSchemas[schema.Schema] {
				items = append(items, Item{
					Label:      schema.Schema,
					Kind:       "schema",
					Detail:     "  (schema)",
					InsertText: schema.Schema,
					SortText:   sortKey(idx),
				})
				idx++
				seenSchemas[schema.Schema] = true
			}

			for _, table := range schema.Tables {
				items = append(items, Item{
					Label:      table.Table,
					Kind:       "table",
					Detail:     "  " + schema.Schema,
					InsertText: table.Table,
					SortText:   sortKey(idx),
				})
				idx++

				qualified := schema.Schema + "." + table.Table
				items = append(items, Item{
					Label:      qualified,
					Kind:       "table",
					Detail:     "  (qualified)",
					InsertText: qualified,
					SortText:   sortKey(idx),
				})
				idx++
			}
		}
	}

	for _, cte := range scope.cteOrder {
		items = append(items, Item{
			Label:      cte,
			Kind:       "cte",
			Detail:     "  (CTE)",
			InsertText: cte,
			SortText:   sortKey(idx),
		})
		idx++
	}

	return items
}

// dotCompletions handles schema.table, table.column, and alias.column
// patterns.
func dotCompletions(scope *sqlScope, schemaData []Database, before string) []Item {
	// Only the tail matters, and a bounded window keeps the regex cheap.
	r := []rune(before)
	if len(r) > 200 {
		r = r[len(r)-200:]
	}
	m := dotPrefix.FindStringSubmatch(string(r))
	if m == nil {
		return []Item{}
	}
	prefix := m[1]

	items := []Item{}
	idx := 0

	for _, db := range schemaData {
		for _, schema := range db.Schemas {
			if fold(schema.Schema) != fold(prefix) {
				continue
			}
			for _, table := range schema.Tables {
				items = append(items, Item{
					Label:         table.Table,
					Kind:          "table",
					Detail:        "  " + schema.Schema,
					Documentation: fmt.Sprintf("Table in %s schema", schema.Schema),
					InsertText:    table.Table,
					SortText:      sortKey(idx),
				})
				idx++
			}
			return items
		}
	}

	actual := scope.resolveAlias(prefix)
	for _, db := range schemaData {
		for _, schema := range db.Schemas {
			for _, table := range schema.Tables {
				if fold(table.Table) != fold(actual) {
					continue
				}
				for _, col := range table.Columns {
					items = append(items, Item{
						Label:         col.Name,
						Kind:          "column",
						Detail:        "  " + table.Table,
						Documentation: col.Type,
						InsertText:    col.Name,
						SortText:      sortKey(idx),
					})
					idx++
				}
				return items
			}
		}
	}

	if cols, ok := scope.cteNamed(prefix); ok {
		for _, col := range cols {
			items = append(items, Item{
				Label:      col,
				Kind:       "cte",
				Detail:     "  " + prefix + " (CTE)",
				InsertText: col,
				SortText:   sortKey(idx),
			})
			idx++
		}
	}

	return items
}

var sqlKeywords = []string{"SELECT", "FROM", "WHERE", "JOIN", "GROUP BY", "ORDER BY", "HAVING", "LIMIT"}

func keywordCompletions() []Item {
	items := make([]Item, len(sqlKeywords))
	for i, kw := range sqlKeywords {
		items[i] = Item{
			Label:      kw,
			Kind:       "keyword",
			InsertText: kw,
			SortText:   sortKey(i),
		}
	}
	return items
}

func sortKey(i int) string {
	return fmt.Sprintf("%05d", i)
}

// fold normalizes an identifier for comparison: NFKC normalization
// followed by Unicode case folding.
func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

func foldSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[fold(n)] = true
	}
	return set
}
