// Package server wires the application together: router, middleware,
// routes, and the HTTP server lifecycle.
//
// This is the composition root — every dependency chain (DB → repository →
// service → handler) is assembled here, and nowhere else.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ofcardoso/medbox/internal/auth"
	"github.com/ofcardoso/medbox/internal/config"
	"github.com/ofcardoso/medbox/internal/handler"
	"github.com/ofcardoso/medbox/internal/middleware"
	sqliteRepo "github.com/ofcardoso/medbox/internal/repository/sqlite"
	"github.com/ofcardoso/medbox/internal/service"
)

// Server owns the router and the resources that must be released on
// shutdown (currently just the database handle).
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency graph and registers all routes.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and handlers.
//
//	GET /                  landing page (welcome or home)
//	GET /login             redirect to Google
//	GET /login/callback    complete the sign-in flow
//	GET /logout            clear the session            [auth]
//	GET /medications/new   new-medication form stub     [auth]
//	GET /alarms/new        new-alarm form stub          [auth]
//	GET /stock             stock page stub              [auth]
//	GET /adherence         adherence page stub          [auth]
//	GET /api/me            signed-in user profile JSON  [auth]
//	GET /static/*          static assets
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	fileServer := http.FileServer(http.Dir(s.config.StaticDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	tokens, err := auth.NewTokenService(s.config.SessionSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	discovery := auth.NewDiscovery(auth.GoogleDiscoveryURL)
	google := auth.NewGoogleProvider(
		s.config.GoogleClientID,
		s.config.GoogleClientSecret,
		s.config.CallbackURL(),
		discovery,
	)

	authService := service.NewAuthService(s.db, tokens, s.logger)
	authHandler := handler.NewAuthHandler(google, authService, s.logger)

	pageHandler, err := handler.NewPageHandler(s.config.TemplateDir, authService, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}

	// Sign-in flow — reachable anonymously by definition.
	s.router.Get("/login", authHandler.HandleLogin)
	s.router.Get("/login/callback", authHandler.HandleCallback)

	// The landing page adapts to session state but never requires one.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))
		r.Get("/", pageHandler.HandleIndex)
	})

	// Everything else redirects anonymous browsers to /login.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/logout", authHandler.HandleLogout)
		r.Get("/medications/new", pageHandler.HandleNewMedication)
		r.Get("/alarms/new", pageHandler.HandleNewAlarm)
		r.Get("/stock", pageHandler.HandleStock)
		r.Get("/adherence", pageHandler.HandleAdherence)
		r.Get("/api/me", authHandler.HandleMe)
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests, close
// the database so the WAL is flushed.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("baseURL", s.config.BaseURL),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
