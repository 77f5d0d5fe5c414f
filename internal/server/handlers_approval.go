package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentdeck/agentdeck/pkg/types"
)

// listQuestions handles GET /question
//
// An optional sessionID query parameter narrows the listing to one session.
func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	pending := s.orchestrator.PendingQuestions(r.URL.Query().Get("sessionID"))
	if pending == nil {
		pending = []types.PendingQuestion{}
	}
	writeJSON(w, http.StatusOK, pending)
}

// AnswerQuestionRequest represents the request body for answering a question.
type AnswerQuestionRequest struct {
	Answers map[string]string `json:"answers"`
}

// answerQuestion handles POST /question/{requestID}/answer
func (s *Server) answerQuestion(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	var req AnswerQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	if !s.orchestrator.AnswerQuestion(requestID, req.Answers) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "question not found")
		return
	}
	writeSuccess(w)
}

// dismissQuestion handles POST /question/{requestID}/dismiss
func (s *Server) dismissQuestion(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	if !s.orchestrator.DismissQuestion(requestID) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "question not found")
		return
	}
	writeSuccess(w)
}

// listPlanApprovals handles GET /plan
func (s *Server) listPlanApprovals(w http.ResponseWriter, r *http.Request) {
	pending := s.orchestrator.PendingPlanApprovals(r.URL.Query().Get("sessionID"))
	if pending == nil {
		pending = []types.PendingPlanApproval{}
	}
	writeJSON(w, http.StatusOK, pending)
}

// RespondPlanRequest represents the request body for a plan approval response.
type RespondPlanRequest struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
}

// respondPlanApproval handles POST /plan/{requestID}/respond
func (s *Server) respondPlanApproval(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	var req RespondPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	if !s.orchestrator.RespondPlanApproval(requestID, req.Approved, req.Feedback) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "plan approval not found")
		return
	}
	writeSuccess(w)
}
