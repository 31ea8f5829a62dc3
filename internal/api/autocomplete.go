package api

import (
	"net/http"

	"github.com/minusxai/minusx/internal/autocomplete"
)

type autocompleteRequest struct {
	Query        string                  `json:"query"`
	CursorOffset int                     `json:"cursor_offset"`
	SchemaData   []autocomplete.Database `json:"schema_data"`
	DatabaseName string                  `json:"database_name"`
}

type mentionRequest struct {
	Prefix             string                  `json:"prefix"`
	SchemaData         []autocomplete.Database `json:"schema_data"`
	AvailableQuestions []autocomplete.Question `json:"available_questions"`
	MentionType        string                  `json:"mention_type"`
}

// handleSQLAutocomplete serves editor completions. The endpoint never
// errors; anything malformed just yields no suggestions.
func (s *Server) handleSQLAutocomplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req autocompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": []autocomplete.Item{}})
		return
	}

	items := autocomplete.Complete(req.Query, req.CursorOffset, req.SchemaData, req.DatabaseName)
	if items == nil {
		items = []autocomplete.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": items})
}

// handleChatMentions serves @ mention suggestions for the chat input:
// tables and saved questions for "all", questions only for "questions".
func (s *Server) handleChatMentions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req mentionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": []autocomplete.Mention{}})
		return
	}
	if req.MentionType == "" {
		req.MentionType = "all"
	}

	mentions := autocomplete.Mentions(req.Prefix, req.SchemaData, req.AvailableQuestions, req.MentionType)
	if mentions == nil {
		mentions = []autocomplete.Mention{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": mentions})
}
