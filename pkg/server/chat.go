package server

import (
	"fmt"
	"net/http"

	"github.com/nestor-ai/nestor/pkg/llms"
	"github.com/nestor-ai/nestor/pkg/orchestrator"
	"github.com/nestor-ai/nestor/pkg/store"
)

// conversationTitleLimit truncates new-thread titles derived from the first
// prompt.
const conversationTitleLimit = 60

type chatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Prompt         string `json:"prompt"`
	Model          string `json:"model,omitempty"`
}

type chatResponse struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
}

// handleChat runs one batch generation: load or create the conversation,
// persist the user turn, invoke the orchestrator with the prior history, and
// persist the reply.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	user := userID(r)

	conv, history, err := s.conversationFor(r, req)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	model := req.Model
	if model == "" {
		if prefs, err := s.store.GetPreferences(ctx, user); err == nil {
			model = prefs.PreferredModel
		}
	}

	if _, err := s.store.AddMessage(ctx, conv.ID, llms.RoleUser, req.Prompt); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist message: "+err.Error())
		return
	}

	reply := s.orch.GenerateResponse(ctx, orchestrator.Request{
		Prompt:  req.Prompt,
		History: history,
		Model:   model,
	})

	if _, err := s.store.AddMessage(ctx, conv.ID, llms.RoleAssistant, reply); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist reply: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{ConversationID: conv.ID, Reply: reply})
}

// conversationFor loads the named conversation and its history, or starts a
// fresh one titled after the prompt.
func (s *Server) conversationFor(r *http.Request, req chatRequest) (*store.Conversation, []orchestrator.Turn, error) {
	ctx := r.Context()
	user := userID(r)

	if req.ConversationID == "" {
		title := req.Prompt
		if len(title) > conversationTitleLimit {
			title = title[:conversationTitleLimit]
		}
		conv, err := s.store.CreateConversation(ctx, user, title)
		return conv, nil, err
	}

	conv, err := s.store.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, nil, err
	}
	if conv.UserID != user {
		return nil, nil, fmt.Errorf("conversation %s: not found", req.ConversationID)
	}

	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	history := make([]orchestrator.Turn, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, orchestrator.Turn{Role: m.Role, Content: m.Content})
	}
	return conv, history, nil
}

type streamRequest struct {
	Messages []orchestrator.Turn `json:"messages"`
}

// handleChatStream serves incremental generation over SSE: data frames per
// text increment, a final [DONE] sentinel.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}

	messages := make([]llms.Message, 0, len(req.Messages))
	for _, turn := range req.Messages {
		messages = append(messages, llms.Message{Role: turn.Role, Content: turn.Content})
	}

	chunks, err := s.orch.StreamResponse(r.Context(), messages)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for chunk := range chunks {
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
