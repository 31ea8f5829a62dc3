package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/minusxai/minusx/connect"
)

const (
	connectionTestTimeout = 30 * time.Second
	schemaFetchTimeout    = 60 * time.Second
)

type executeQueryRequest struct {
	Query        string         `json:"query"`
	Parameters   map[string]any `json:"parameters"`
	DatabaseName string         `json:"database_name"`
	SessionToken string         `json:"session_token"`
}

type connectionConfigRequest struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

type testConnectionRequest struct {
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Config        map[string]any `json:"config"`
	IncludeSchema bool           `json:"include_schema"`
}

type testConnectionResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Schema  []connect.Schema `json:"schema"`
}

// handleExecuteQuery runs SQL against a named connection, lazily fetching
// its config from the control plane on first use. Tenancy comes from the
// x-company-id and x-mode headers, never from the body.
func (s *Server) handleExecuteQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req executeQueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DatabaseName == "" {
		req.DatabaseName = "default"
	}

	companyHeader := r.Header.Get("x-company-id")
	if companyHeader == "" {
		writeError(w, http.StatusBadRequest, "Missing x-company-id header - required for multi-tenant isolation")
		return
	}
	companyID, err := strconv.Atoi(companyHeader)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid x-company-id header - must be an integer")
		return
	}
	mode := r.Header.Get("x-mode")
	if mode == "" {
		mode = "org"
	}

	c, err := s.manager.GetOrInitialize(r.Context(), req.DatabaseName, companyID, req.SessionToken, mode)
	if err != nil {
		if errors.Is(err, connect.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := c.Query(r.Context(), req.Query, req.Parameters)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleConnectionAction routes /api/connections/{name}/{action} for the
// initialize, remove and schema actions.
func (s *Server) handleConnectionAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/connections/")
	name, action, ok := strings.Cut(rest, "/")
	if !ok || name == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch action {
	case "initialize":
		s.initializeConnection(w, r, name)
	case "remove":
		s.removeConnection(w, name)
	case "schema":
		s.connectionSchema(w, r, name)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) initializeConnection(w http.ResponseWriter, r *http.Request, name string) {
	var req connectionConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.logger.Info("initializing connection", "connection", name, "type", req.Type)
	c, err := s.manager.InitializeWith(name, req.Type, req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	schema, err := c.Schema(r.Context(), false)
	if err != nil {
		s.logger.Error("schema fetch failed after initialize", "connection", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Initialized: " + name,
		"schema":  map[string]any{"schemas": schema},
	})
}

func (s *Server) removeConnection(w http.ResponseWriter, name string) {
	s.manager.Remove(name)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleConnectionsHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	names := s.manager.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"initialized": names,
		"count":       len(names),
	})
}

// handleConnectionTest probes the supplied config without caching anything,
// so unsaved edits can be tested. Failures come back as success=false with
// HTTP 200; the endpoint itself does not error.
func (s *Server) handleConnectionTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req testConnectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := req.Name
	if name == "" {
		name = "temp_test"
	}

	c, err := s.manager.NewConnector(name, req.Type, req.Config)
	if err != nil {
		writeJSON(w, http.StatusOK, testConnectionResponse{Message: err.Error()})
		return
	}
	defer c.Close()

	if errs := c.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusOK, testConnectionResponse{Message: strings.Join(errs, "; ")})
		return
	}

	testCtx, cancel := context.WithTimeout(r.Context(), connectionTestTimeout)
	defer cancel()
	if err := c.Test(testCtx); err != nil {
		msg := err.Error()
		if testCtx.Err() == context.DeadlineExceeded {
			msg = "Connection test timed out"
		}
		writeJSON(w, http.StatusOK, testConnectionResponse{Message: msg})
		return
	}

	resp := testConnectionResponse{Success: true, Message: "Connection successful"}
	if req.IncludeSchema {
		schemaCtx, cancel := context.WithTimeout(r.Context(), schemaFetchTimeout)
		defer cancel()
		schema, err := c.Schema(schemaCtx, false)
		if err != nil {
			// A schema failure does not fail the test.
			s.logger.Warn("schema fetch failed during connection test", "connection", name, "error", err)
		} else {
			resp.Schema = schema
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// connectionSchema fetches the schema through a temporary connector built
// from the supplied config, without touching the connection cache.
func (s *Server) connectionSchema(w http.ResponseWriter, r *http.Request, name string) {
	var req connectionConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := s.manager.NewConnector(name, req.Type, req.Config)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer c.Close()

	if errs := c.Validate(); len(errs) > 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid connection config: %v", errs))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), schemaFetchTimeout)
	defer cancel()
	schema, err := c.Schema(ctx, false)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			writeError(w, http.StatusGatewayTimeout, "Schema fetch timed out")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schemas": schema})
}
