package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/dawgsconnect/jobboard/config"
	"github.com/dawgsconnect/jobboard/internal/handlers"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	deps       *Deps
}

// New opens the configured backends and builds the HTTP server.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*Server, error) {
	deps, err := OpenDeps(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.Jobs.Warm(ctx)

	router := NewRouter(deps, logger)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		deps:       deps,
	}, nil
}

// NewRouter mounts every route over deps.
func NewRouter(deps *Deps, logger *logrus.Logger) *chi.Mux {
	authMiddleware := handlers.RequireAuth(deps.Provider)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, deps.Provider, deps.Users, deps.Logger)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, deps.Users, deps.Jobs, authMiddleware)
	})
	router.Route("/jobs", func(r chi.Router) {
		handlers.JobRouter(r, deps.Jobs, deps.Users, authMiddleware)
	})
	router.Route("/validate", func(r chi.Router) {
		handlers.ValidateRouter(r, time.Now)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Deps exposes the wired services.
func (s *Server) Deps() *Deps {
	return s.deps
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.deps.Close(); err == nil {
		err = closeErr
	}
	return err
}
