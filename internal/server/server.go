// Package server exposes the session orchestrator over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/agentdeck/agentdeck/internal/event"
	"github.com/agentdeck/agentdeck/internal/logging"
	"github.com/agentdeck/agentdeck/internal/session"
)

// Config holds server configuration.
type Config struct {
	Hostname     string
	Port         int
	Directory    string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Hostname:     "127.0.0.1",
		Port:         8080,
		Directory:    "",
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for SSE
	}
}

// listenAddr is the host:port the server binds. An empty hostname binds all
// interfaces.
func (c *Config) listenAddr() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}

// Server is the HTTP server.
type Server struct {
	config       *Config
	router       *chi.Mux
	httpSrv      *http.Server
	orchestrator *session.Orchestrator
	bus          *event.Bus
	log          zerolog.Logger
}

// New creates a new Server instance.
func New(cfg *Config, orchestrator *session.Orchestrator, bus *event.Bus) *Server {
	s := &Server{
		config:       cfg,
		router:       chi.NewRouter(),
		orchestrator: orchestrator,
		bus:          bus,
		log:          logging.Component("server"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	s.router.Use(s.instanceContext)
}

// instanceContext middleware injects the working directory into context.
func (s *Server) instanceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dir := r.URL.Query().Get("directory")
		if dir == "" {
			dir = s.config.Directory
		}

		ctx := context.WithValue(r.Context(), contextKeyDirectory, dir)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.config.listenAddr(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Context keys
type contextKey string

const (
	contextKeyDirectory contextKey = "directory"
)

// getDirectory returns the directory from context.
func getDirectory(ctx context.Context) string {
	if dir, ok := ctx.Value(contextKeyDirectory).(string); ok {
		return dir
	}
	return ""
}
