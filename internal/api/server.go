// Package api exposes the backend HTTP surface: the conversation endpoints
// driving the agent orchestrator, warehouse connection management, CSV
// uploads and SQL editor autocompletion.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/minusxai/minusx"
	"github.com/minusxai/minusx/connect"
)

// maxBodyBytes caps JSON request bodies. Conversation logs ride along on
// every turn, so the limit is generous.
const maxBodyBytes = 32 << 20

// Server holds the shared state behind the HTTP handlers.
type Server struct {
	manager    *connect.Manager
	dataDir    string
	logger     *slog.Logger
	tracer     minusx.Tracer
	production bool
	taskHook   func(*minusx.CompressedTask)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithTracer attaches a tracer to every orchestrator the server builds.
func WithTracer(t minusx.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithProduction switches error responses to an opaque message plus error id.
// The full failure detail is only logged server-side.
func WithProduction(production bool) Option {
	return func(s *Server) { s.production = production }
}

// WithTaskCompletionHook registers a callback fired for every task that
// resolves during a conversation turn, on both the plain and streaming
// endpoints.
func WithTaskCompletionHook(fn func(*minusx.CompressedTask)) Option {
	return func(s *Server) { s.taskHook = fn }
}

// NewServer builds a Server around the given connection manager. dataDir is
// the root directory for CSV connection storage.
func NewServer(manager *connect.Manager, dataDir string, opts ...Option) *Server {
	s := &Server{
		manager: manager,
		dataDir: dataDir,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the route table for the API.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/chat/stream", s.handleChatStream)
	mux.HandleFunc("/api/chat/close", s.handleChatClose)

	mux.HandleFunc("/api/execute-query", s.handleExecuteQuery)
	mux.HandleFunc("/api/connections/health", s.handleConnectionsHealth)
	mux.HandleFunc("/api/connections/test", s.handleConnectionTest)
	mux.HandleFunc("/api/connections/", s.handleConnectionAction)

	mux.HandleFunc("/api/csv/upload", s.handleCSVUpload)
	mux.HandleFunc("/api/csv/delete/", s.handleCSVDelete)

	mux.HandleFunc("/api/sql-autocomplete", s.handleSQLAutocomplete)
	mux.HandleFunc("/api/chat-mentions", s.handleChatMentions)

	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "MinusX BI Backend API",
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// nowISO matches the timestamp format used in conversation log entries.
func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "+00:00"
}
