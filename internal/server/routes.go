package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Session routes
	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)

			r.Get("/message", s.getMessages)
			r.Post("/prompt", s.sendPrompt)
			r.Post("/abort", s.abortSession)
			r.Get("/init", s.getInit)
		})
	})

	// Question routes (agent-initiated questions awaiting a human)
	r.Route("/question", func(r chi.Router) {
		r.Get("/", s.listQuestions)
		r.Post("/{requestID}/answer", s.answerQuestion)
		r.Post("/{requestID}/dismiss", s.dismissQuestion)
	})

	// Plan approval routes
	r.Route("/plan", func(r chi.Router) {
		r.Get("/", s.listPlanApprovals)
		r.Post("/{requestID}/respond", s.respondPlanApproval)
	})

	// Models
	r.Get("/models", s.listModels)

	// Event streaming (SSE)
	r.Get("/event", s.events)
}
