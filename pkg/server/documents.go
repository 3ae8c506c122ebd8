package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nestor-ai/nestor/pkg/store"
)

// maxUploadBytes caps document uploads.
const maxUploadBytes = 50 << 20

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListDocuments(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []store.Document{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleUploadDocument saves the multipart file under the upload directory
// with a uuid-prefixed name, records it, and invalidates the retrieval index
// so the next search picks it up.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required: "+err.Error())
		return
	}
	defer file.Close()

	if err := os.MkdirAll(s.cfg.Uploads.Dir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	name := fmt.Sprintf("%s-%s", uuid.NewString()[:8], filepath.Base(header.Filename))
	path := filepath.Join(s.cfg.Uploads.Dir, name)

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

	doc, err := s.store.AddDocument(r.Context(), userID(r), path, header.Filename, size)
	if err != nil {
		os.Remove(path)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.cache.Invalidate()
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil || doc.UserID != userID(r) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	if err := os.Remove(doc.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.store.DeleteDocument(r.Context(), doc.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.cache.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}
