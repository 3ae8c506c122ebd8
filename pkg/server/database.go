package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nestor-ai/nestor/pkg/sqldb"
)

func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	details, err := s.sql.Resolver().ResolveConnectionDetails(r.Context(), userID(r))
	if err != nil {
		if errors.Is(err, sqldb.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no database connection configured")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// handlePutConnection stores the caller's connection descriptor and drops
// any toolkit state tied to the previous one.
func (s *Server) handlePutConnection(w http.ResponseWriter, r *http.Request) {
	var details sqldb.ConnectionDetails
	if !decodeJSON(w, r, &details) {
		return
	}
	if err := details.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stale := []string{details.Fingerprint()}
	if prev, err := s.store.GetConnection(r.Context(), userID(r)); err == nil {
		stale = append(stale, prev.Fingerprint())
	}

	if err := s.store.SetConnection(r.Context(), userID(r), details); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sql.ClearToolkitCache(stale...)
	writeJSON(w, http.StatusOK, details)
}

// handleUploadDatabase accepts a SQLite database file, stores it under the
// upload tree, and points the caller's connection at it.
func (s *Server) handleUploadDatabase(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required: "+err.Error())
		return
	}
	defer file.Close()

	dir := filepath.Join(s.cfg.Uploads.Dir, "databases")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s", uuid.NewString()[:8], filepath.Base(header.Filename)))
	dst, err := os.Create(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	size, err := io.Copy(dst, file)
	dst.Close()
	if err != nil {
		os.Remove(path)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	user := userID(r)
	doc, err := s.store.AddUploadedDatabase(r.Context(), user, path, header.Filename, size)
	if err != nil {
		os.Remove(path)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	details := sqldb.ConnectionDetails{
		Mode:        sqldb.ModeSQLite,
		SQLitePath:  path,
		DisplayName: header.Filename,
	}
	stale := []string{details.Fingerprint()}
	if prev, err := s.store.GetConnection(r.Context(), user); err == nil {
		stale = append(stale, prev.Fingerprint())
	}
	if err := s.store.SetConnection(r.Context(), user, details); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sql.ClearToolkitCache(stale...)

	writeJSON(w, http.StatusCreated, map[string]any{
		"database":   doc,
		"connection": details,
	})
}

// handleTestConnection probes the posted descriptor, or the caller's
// resolved connection when the body carries no mode.
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var details sqldb.ConnectionDetails
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &details) {
			return
		}
	}
	if details.Mode == "" {
		resolved, err := s.sql.Resolver().ResolveConnectionDetails(r.Context(), userID(r))
		if err != nil {
			writeError(w, http.StatusNotFound, "no database connection configured")
			return
		}
		details = resolved
	}
	if err := details.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": s.sql.TestConnection(r.Context(), details)})
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"schema": s.sql.GetDatabaseSchema(r.Context(), userID(r)),
	})
}

type sqlSuggestRequest struct {
	Request string `json:"request"`
	Model   string `json:"model,omitempty"`
}

// handleSQLSuggest produces draft SQL for a natural-language request. The
// draft is text only; nothing runs until the caller confirms through
// /api/sql/execute.
func (s *Server) handleSQLSuggest(w http.ResponseWriter, r *http.Request) {
	var req sqlSuggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Request) == "" {
		writeError(w, http.StatusBadRequest, "request text is required")
		return
	}

	details, err := s.sql.Resolver().ResolveConnectionDetails(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusNotFound, "no database connection configured")
		return
	}

	a, err := s.agents.GetAgent(req.Model)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	suggestion, err := s.sql.GenerateSQLSuggestions(r.Context(), a.Provider(), details, req.Request)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"suggestion": suggestion})
}

type sqlExecuteRequest struct {
	Query   string `json:"query"`
	Confirm bool   `json:"confirm"`
}

// handleSQLExecute runs a statement the user explicitly confirmed. This is
// the only execution path; the assistant's tools never reach it.
func (s *Server) handleSQLExecute(w http.ResponseWriter, r *http.Request) {
	var req sqlExecuteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if !req.Confirm {
		writeError(w, http.StatusForbidden, "execution requires explicit confirmation: set confirm to true")
		return
	}

	details, err := s.sql.Resolver().ResolveConnectionDetails(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusNotFound, "no database connection configured")
		return
	}

	if isReadQuery(req.Query) {
		result, err := s.sql.RunQuery(r.Context(), details, req.Query)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	affected, err := s.sql.ExecuteRaw(r.Context(), details, req.Query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"rows_affected": affected})
}

// isReadQuery reports whether the statement returns rows rather than
// mutating state, judged by its leading keyword.
func isReadQuery(query string) bool {
	head := strings.ToUpper(strings.TrimSpace(query))
	for _, kw := range []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "EXPLAIN", "PRAGMA"} {
		if strings.HasPrefix(head, kw) {
			return true
		}
	}
	return false
}
