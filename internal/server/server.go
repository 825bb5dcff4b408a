package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"mathemelody/internal/auth"
	"mathemelody/internal/cache"
	"mathemelody/internal/config"
	"mathemelody/internal/database"
	"mathemelody/internal/ngrok"
	"mathemelody/internal/render"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Version is reported by the health endpoint.
const Version = "0.4.0"

// Server is the composition platform's HTTP server: JSON API, gallery
// cache, async renders, import watcher and the optional share tunnel.
type Server struct {
	db           *database.Database
	config       *config.Config
	auth         *auth.Service
	gallery      *cache.GalleryCache
	renders      *render.Manager
	ngrokService *ngrok.Service
	watcher      *fsnotify.Watcher
	logger       *logrus.Logger
	httpServer   *http.Server
	startedAt    time.Time
}

// NewServer wires up a server from its dependencies.
func NewServer(cfg *config.Config, db *database.Database, logger *logrus.Logger) (*Server, error) {
	authService, err := auth.NewService(&cfg.Auth, cfg.SessionTTL(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}

	renderManager, err := render.NewManager(&cfg.Render, db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create render manager: %w", err)
	}

	// Create ngrok service
	ngrokSvc, err := ngrok.NewService(&cfg.Ngrok)
	if err != nil {
		log.Printf("Warning: Ngrok service not available: %v", err)
		ngrokSvc = nil
	}

	server := &Server{
		db:           db,
		config:       cfg,
		auth:         authService,
		gallery:      cache.NewGalleryCache(time.Duration(cfg.Gallery.CacheTTL) * time.Second),
		renders:      renderManager,
		ngrokService: ngrokSvc,
		logger:       logger,
		startedAt:    time.Now(),
	}

	return server, nil
}

// Handler builds the full request handler: routes wrapped in panic
// recovery, CORS and request logging. Exposed so tests can drive the
// server without a listener.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.routes()
	handler = s.requestLoggingMiddleware(handler)
	handler = s.corsMiddleware(handler)
	handler = s.panicRecoveryMiddleware(handler)
	return handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealthCheck)

	// Auth
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/me", s.requireAuth(s.handleMe))

	// Compositions
	mux.HandleFunc("POST /api/compositions", s.requireAuth(s.handleCreateComposition))
	mux.HandleFunc("GET /api/compositions/my", s.requireAuth(s.handleMyCompositions))
	mux.HandleFunc("GET /api/compositions/public/gallery", s.handleGallery)
	mux.HandleFunc("GET /api/compositions/{id}", s.optionalAuth(s.handleGetComposition))
	mux.HandleFunc("PUT /api/compositions/{id}", s.requireAuth(s.handleUpdateComposition))
	mux.HandleFunc("DELETE /api/compositions/{id}", s.requireAuth(s.handleDeleteComposition))

	// Social
	mux.HandleFunc("POST /api/compositions/{id}/like", s.requireAuth(s.handleToggleLike))
	mux.HandleFunc("POST /api/compositions/{id}/comments", s.requireAuth(s.handleAddComment))
	mux.HandleFunc("GET /api/compositions/{id}/comments", s.optionalAuth(s.handleGetComments))
	mux.HandleFunc("DELETE /api/comments/{id}", s.requireAuth(s.handleDeleteComment))

	// Renders
	mux.HandleFunc("POST /api/compositions/{id}/render", s.requireAuth(s.handleSubmitRender))
	mux.HandleFunc("GET /api/renders", s.requireAuth(s.handleListRenders))
	mux.HandleFunc("GET /api/renders/{id}", s.requireAuth(s.handleGetRender))
	mux.HandleFunc("GET /api/renders/{id}/file", s.requireAuth(s.handleRenderFile))

	// Web client
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.config.Server.StaticDir))))
	mux.HandleFunc("GET /", s.handleHome)

	return mux
}

// Start runs the server until ListenAndServe returns. It also starts the
// import watcher, render cleanup and share tunnel when configured.
func (s *Server) Start() error {
	if s.config.Import.Enabled {
		if err := s.startImportWatcher(); err != nil {
			s.logger.WithError(err).Warn("Could not start import watcher")
		}
	}

	go s.renderCleanupLoop()

	localAddress := fmt.Sprintf("http://%s", s.config.GetAddress())
	s.logger.WithFields(logrus.Fields{
		"address": localAddress,
		"version": Version,
	}).Info("Mathemelody server starting")

	// Start ngrok tunnel if enabled
	if s.ngrokService != nil {
		ctx := context.Background()
		if err := s.ngrokService.StartTunnel(ctx, localAddress); err != nil {
			s.logger.WithError(err).Warn("Could not start ngrok tunnel")
		}
	}

	s.httpServer = &http.Server{
		Addr:        s.config.GetAddress(),
		Handler:     s.Handler(),
		ReadTimeout: time.Duration(s.config.Server.ReadTimeout) * time.Second,
	}

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// renderCleanupLoop periodically removes old render jobs and files.
func (s *Server) renderCleanupLoop() {
	retention := time.Duration(s.config.Render.RetentionDays) * 24 * time.Hour
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		s.renders.CleanupCompletedJobs(retention)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() {
	s.logger.Info("Shutting down server...")

	s.stopImportWatcher()
	if err := s.ngrokService.Stop(); err != nil {
		s.logger.WithError(err).Warn("Error stopping ngrok tunnel")
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.WithError(err).Warn("Error during HTTP shutdown")
		}
	}

	s.logger.Info("Server shutdown complete")
}
