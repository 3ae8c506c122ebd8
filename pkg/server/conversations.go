package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nestor-ai/nestor/pkg/store"
)

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListConversations(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []store.Conversation{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	conv, err := s.store.CreateConversation(r.Context(), userID(r), req.Title)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// ownedConversation loads the conversation and enforces that it belongs to
// the caller; foreign threads are indistinguishable from missing ones.
func (s *Server) ownedConversation(w http.ResponseWriter, r *http.Request) *store.Conversation {
	conv, err := s.store.GetConversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil || conv.UserID != userID(r) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return nil
	}
	return conv
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	if conv := s.ownedConversation(w, r); conv != nil {
		writeJSON(w, http.StatusOK, conv)
	}
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	conv := s.ownedConversation(w, r)
	if conv == nil {
		return
	}
	if err := s.store.DeleteConversation(r.Context(), conv.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conv := s.ownedConversation(w, r)
	if conv == nil {
		return
	}

	msgs, err := s.store.ListMessages(r.Context(), conv.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type         string `json:"type"`
		ReportReason string `json:"report_reason,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	switch req.Type {
	case "like", "dislike", "report":
	default:
		writeError(w, http.StatusBadRequest, "type must be like, dislike, or report")
		return
	}

	feedback, err := s.store.UpsertFeedback(r.Context(), userID(r), chi.URLParam(r, "id"), req.Type, req.ReportReason)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, feedback)
}
