package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/minusxai/minusx/connect"
)

// maxUploadMemory is the in-memory threshold for multipart parsing; larger
// uploads spill to temp files.
const maxUploadMemory = 64 << 20

type csvUploadResponse struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Config  *connect.CSVUploadResult `json:"config"`
}

type csvDeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleCSVUpload ingests one or more CSV files into a per-tenant database
// and returns the connection config to store in the control plane.
func (s *Server) handleCSVUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	companyHeader := r.Header.Get("x-company-id")
	if companyHeader == "" {
		writeError(w, http.StatusBadRequest, "Missing x-company-id header")
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

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	name := r.FormValue("connection_name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "connection_name is required")
		return
	}
	replaceExisting, _ := strconv.ParseBool(r.FormValue("replace_existing"))

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "At least one CSV file is required")
		return
	}
	for _, fh := range files {
		if fh.Filename == "" {
			writeError(w, http.StatusBadRequest, "File must have a filename")
			return
		}
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".csv") {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("File '%s' is not a CSV file", fh.Filename))
			return
		}
	}

	csvFiles := make([]connect.CSVFile, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read file '%s'", fh.Filename))
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read file '%s'", fh.Filename))
			return
		}
		csvFiles = append(csvFiles, connect.CSVFile{Filename: fh.Filename, Content: content})
	}

	result, err := connect.ProcessCSVUpload(s.dataDir, companyID, mode, name, csvFiles, replaceExisting)
	if err != nil {
		s.logger.Error("csv upload failed", "connection", name, "company_id", companyID, "error", err)
		writeJSON(w, http.StatusOK, csvUploadResponse{Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, csvUploadResponse{
		Success: true,
		Message: fmt.Sprintf("Successfully uploaded %d CSV file(s)", len(csvFiles)),
		Config:  result,
	})
}

// handleCSVDelete removes the stored files and database for a CSV
// connection at /api/csv/delete/{name}.
func (s *Server) handleCSVDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/csv/delete/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	companyHeader := r.Header.Get("x-company-id")
	if companyHeader == "" {
		writeError(w, http.StatusBadRequest, "Missing x-company-id header")
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

	deleted, err := connect.DeleteCSVConnection(s.dataDir, companyID, mode, name)
	if err != nil {
		s.logger.Error("csv delete failed", "connection", name, "company_id", companyID, "error", err)
		writeJSON(w, http.StatusOK, csvDeleteResponse{Message: fmt.Sprintf("Delete failed: %v", err)})
		return
	}

	msg := fmt.Sprintf("No CSV data found for connection '%s'", name)
	if deleted {
		msg = fmt.Sprintf("Successfully deleted CSV data for connection '%s'", name)
	}
	writeJSON(w, http.StatusOK, csvDeleteResponse{Success: true, Message: msg})
}
