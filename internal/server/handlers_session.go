package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/internal/session"
	"github.com/agentdeck/agentdeck/pkg/types"
)

// CreateSessionRequest represents the request body for creating a session.
type CreateSessionRequest struct {
	Title string `json:"title,omitempty"`
}

// listSessions handles GET /session
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.orchestrator.Registry().List()
	if sessions == nil {
		sessions = []*types.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// createSession handles POST /session
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
			return
		}
	}

	created := s.orchestrator.Registry().Create(req.Title)
	writeJSON(w, http.StatusOK, created)
}

// getSession handles GET /session/{sessionID}
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	found, err := s.orchestrator.Registry().Get(sessionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// deleteSession handles DELETE /session/{sessionID}
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.orchestrator.Delete(sessionID); err != nil {
		writeSessionError(w, err)
		return
	}
	writeSuccess(w)
}

// GroupedMessage is a message with its parts resolved into rendered groups.
type GroupedMessage struct {
	ID      string                 `json:"id"`
	Role    types.Role             `json:"role"`
	Content string                 `json:"content"`
	Items   []*session.GroupedItem `json:"items"`
}

// getMessages handles GET /session/{sessionID}/message
//
// With ?grouped=true each message's parts are resolved into task groups.
func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := s.orchestrator.ListMessages(sessionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	if r.URL.Query().Get("grouped") == "true" {
		grouped := make([]GroupedMessage, 0, len(messages))
		for _, msg := range messages {
			grouped = append(grouped, GroupedMessage{
				ID:      msg.ID,
				Role:    msg.Role,
				Content: msg.Content,
				Items:   session.GroupParts(msg.Parts),
			})
		}
		writeJSON(w, http.StatusOK, grouped)
		return
	}

	if messages == nil {
		messages = []*types.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// PromptRequest represents the request body for sending a prompt.
type PromptRequest struct {
	Prompt         string               `json:"prompt"`
	Model          string               `json:"model,omitempty"`
	PermissionMode string               `json:"permissionMode,omitempty"`
	Attachments    []session.Attachment `json:"attachments,omitempty"`
}

// sendPrompt handles POST /session/{sessionID}/prompt
//
// The turn runs in the background; this returns 202 once the turn is accepted
// and progress arrives over the event stream.
func (s *Server) sendPrompt(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "prompt is required")
		return
	}

	if _, err := s.orchestrator.Registry().Get(sessionID); err != nil {
		writeSessionError(w, err)
		return
	}

	opts := session.PromptOptions{
		Directory:      getDirectory(r.Context()),
		Model:          req.Model,
		PermissionMode: agent.PermissionMode(req.PermissionMode),
		Attachments:    req.Attachments,
	}

	go func() {
		// Detached from the request context: the turn outlives the HTTP
		// exchange and is stopped via /abort, not client disconnect.
		if err := s.orchestrator.SendPrompt(context.Background(), sessionID, req.Prompt, opts); err != nil {
			s.log.Error().Err(err).Str("sessionID", sessionID).Msg("turn failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"sessionID": sessionID, "status": "accepted"})
}

// abortSession handles POST /session/{sessionID}/abort
func (s *Server) abortSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := s.orchestrator.Registry().Get(sessionID); err != nil {
		writeSessionError(w, err)
		return
	}

	aborted := s.orchestrator.Abort(sessionID)
	writeJSON(w, http.StatusOK, map[string]bool{"aborted": aborted})
}

// getInit handles GET /session/{sessionID}/init
func (s *Server) getInit(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	init, err := s.orchestrator.GetInit(sessionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if init == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session has not been initialized yet")
		return
	}
	writeJSON(w, http.StatusOK, init)
}

// listModels handles GET /models
func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.orchestrator.ListModels(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if models == nil {
		models = []types.ModelInfo{}
	}
	writeJSON(w, http.StatusOK, models)
}
