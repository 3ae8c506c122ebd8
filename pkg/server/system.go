package server

import (
	"errors"
	"net/http"

	"github.com/nestor-ai/nestor/pkg/llms"
	"github.com/nestor-ai/nestor/pkg/store"
)

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.store.GetPreferences(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs store.Preferences
	if !decodeJSON(w, r, &prefs) {
		return
	}
	prefs.UserID = userID(r)

	if prefs.Theme != "light" && prefs.Theme != "dark" {
		writeError(w, http.StatusBadRequest, "theme must be light or dark")
		return
	}
	if prefs.PreferredModel != "" && !s.knownModel(prefs.PreferredModel) {
		writeError(w, http.StatusBadRequest, "unknown model: "+prefs.PreferredModel)
		return
	}

	if err := s.store.SetPreferences(r.Context(), prefs); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) knownModel(id string) bool {
	for _, spec := range s.agents.Models() {
		if spec.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  s.agents.Models(),
		"current": s.agents.CurrentModel().ID,
	})
}

type setModelRequest struct {
	Model string `json:"model"`
}

func (s *Server) handleSetCurrentModel(w http.ResponseWriter, r *http.Request) {
	var req setModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.agents.SetCurrentModel(req.Model); err != nil {
		switch {
		case errors.Is(err, llms.ErrUnknownModel):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, llms.ErrModelUnavailable):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"current": s.agents.CurrentModel().ID})
}

type agentResetRequest struct {
	Model string `json:"model,omitempty"`
}

// handleAgentReset clears conversation memory and rebuilds the agent for
// one model, or for all models when none is named.
func (s *Server) handleAgentReset(w http.ResponseWriter, r *http.Request) {
	var req agentResetRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	s.agents.ResetAgent(req.Model)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
