package autocomplete

import "strings"

// Mention kinds accepted by Mentions.
const (
	MentionAll       = "all"
	MentionQuestions = "questions"
)

// Mention is one chat-mention suggestion for the @ and @@ pickers.
type Mention struct {
	ID          *int   `json:"id"`
	Name        string `json:"name"`
	Schema      string `json:"schema,omitempty"`
	Type        string `json:"type"`
	DisplayText string `json:"display_text"`
	InsertText  string `json:"insert_text"`
}

// Question is a saved question or dashboard offered for @@ mentions.
type Question struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Alias string `json:"alias"`
	Type  string `json:"type"`
}

// Mentions suggests chat mentions matching prefix. MentionAll covers
// tables plus questions and dashboards; MentionQuestions covers only the
// latter. Tables insert as @schema.table, questions as @@alias. The
// result is never nil.
func Mentions(prefix string, schemaData []Database, questions []Question, mentionType string) []Mention {
	out := []Mention{}
	p := fold(prefix)

	if mentionType == MentionAll {
		for _, db := range schemaData {
			for _, schema := range db.Schemas {
				for _, table := range schema.Tables {
					qualified := schema.Schema + "." + table.Table
					if p != "" && !strings.HasPrefix(fold(table.Table), p) && !strings.HasPrefix(fold(qualified), p) {
						continue
					}
					out = append(out, Mention{
						Name:        table.Table,
						Schema:      schema.Schema,
						Type:        "table",
						DisplayText: table.Table,
						InsertText:  "@" + qualified,
					})
				}
			}
		}
	}

	for _, q := range questions {
		if p != "" && !strings.HasPrefix(fold(q.Name), p) && !strings.HasPrefix(fold(q.Alias), p) {
			continue
		}
		typ := q.Type
		if typ == "" {
			typ = "question"
		}
		id := q.ID
		out = append(out, Mention{
			ID:          &id,
			Name:        q.Name,
			Type:        typ,
			DisplayText: q.Name,
			InsertText:  "@@" + q.Alias,
		})
	}

	return out
}
