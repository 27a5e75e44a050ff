// Package web exposes the engine to a presentation layer over HTTP:
// scan jobs with SSE progress, group listing and mutations, suggestions,
// known-people matching and thumbnails.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jvanek/facegroups/internal/config"
	"github.com/jvanek/facegroups/internal/detect"
	"github.com/jvanek/facegroups/internal/registry"
	"github.com/jvanek/facegroups/internal/store"
	"github.com/jvanek/facegroups/internal/web/handlers"
)

// Server represents the web server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server.
func NewServer(cfg *config.Config, st *store.Store, detector detect.Detector, reg registry.Registry, port int, host string) *Server {
	r := chi.NewRouter()

	app := handlers.NewApp(cfg, st, detector, reg)

	s := &Server{router: r}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))

	s.setupRoutes(app)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long timeout for SSE
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
