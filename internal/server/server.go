package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mgreene/runlab/internal/config"
	"github.com/mgreene/runlab/internal/ocr"
	"github.com/mgreene/runlab/internal/sandbox"
	"github.com/mgreene/runlab/internal/storage"
)

// Server is the HTTP server for the runlab API.
type Server struct {
	cfg      *config.Config
	store    storage.Store
	runner   sandbox.Runner
	ocr      ocr.Engine
	registry *Registry
	router   chi.Router
	http     *http.Server
}

// New creates a new Server.
func New(cfg *config.Config, store storage.Store, runner sandbox.Runner, engine ocr.Engine) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		runner:   runner,
		ocr:      engine,
		registry: NewRegistry(),
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Endpoints the playground client talks to
	r.Post("/upload-image", s.handleUploadImage)
	r.Post("/compile-code", s.handleCompileCode)
	r.Get("/ws", s.handleWebSocket)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/images", s.handleListImages)
		r.Get("/images/{id}", s.handleGetImage)
		r.Delete("/images/{id}", s.handleDeleteImage)
		r.Get("/runs", s.handleListRuns)
	})
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	log.Printf("runlab server starting on http://localhost%s", addr)
	return s.http.ListenAndServe()
}

// Handler returns the server's router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown gracefully shuts down the server, tearing down active sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")
	s.registry.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
