// Package server provides HTTP server setup, routing and graceful
// shutdown for the MathsIA API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/apperrors"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/auth"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/config"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/constants"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/handlers"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/logging"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/middleware"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/repository"
)

// Pinger reports database liveness for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps bundles the wired dependencies of the HTTP server.
type Deps struct {
	Users     *repository.UserRepository
	Memocards *repository.MemocardRepository
	Responses *repository.ResponseRepository
	Tokens    *auth.TokenService
	DB        Pinger
}

// Server represents the HTTP server.
type Server struct {
	config  *config.Settings
	db      Pinger
	mux     *http.ServeMux
	server  *http.Server
	version string
}

// New creates a new server instance with all routes configured.
func New(cfg *config.Settings, deps Deps, addr, version string) *Server {
	mux := http.NewServeMux()

	srv := &Server{
		config:  cfg,
		db:      deps.DB,
		mux:     mux,
		version: version,
		server: &http.Server{
			Addr:         addr,
			Handler:      withRequestLogging(mux),
			ReadTimeout:  constants.HTTPReadTimeout,
			WriteTimeout: constants.HTTPWriteTimeout,
			IdleTimeout:  constants.HTTPIdleTimeout,
		},
	}

	srv.setupRoutes(deps)
	return srv
}

// Handler returns the root handler, including the logging and recovery
// middleware. Used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func withRequestLogging(next http.Handler) http.Handler {
	rl := logging.NewRequestLogger(logging.RequestLoggerConfig{
		Logger:    logging.GetLogger(),
		SkipPaths: []string{"/health"},
	})
	return rl.Middleware(apperrors.RecoveryMiddleware(next))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(deps Deps) {
	authn := middleware.NewAuthenticator(deps.Tokens, deps.Users)

	authHandler := handlers.NewAuthHandler(deps.Users, deps.Tokens)
	studentAdmin := handlers.NewAdminStudentHandler(deps.Users, deps.Memocards, deps.Responses)
	memocardAdmin := handlers.NewAdminMemocardHandler(deps.Memocards)
	student := handlers.NewStudentHandler(deps.Users, deps.Memocards, deps.Responses)

	prefix := s.config.APIV1Prefix

	// Public endpoints.
	s.mux.HandleFunc("GET /{$}", s.rootHandler)
	s.mux.HandleFunc("GET /health", s.healthHandler)
	s.mux.HandleFunc("POST "+prefix+"/auth/login", authHandler.Login)
	s.mux.HandleFunc("POST "+prefix+"/auth/refresh", authHandler.Refresh)

	// Authenticated endpoints.
	authed := func(h http.HandlerFunc) http.Handler {
		return authn.Authenticate(h)
	}
	s.mux.Handle("GET "+prefix+"/auth/me", authed(authHandler.Me))
	s.mux.Handle("POST "+prefix+"/auth/change-password", authed(authHandler.ChangePassword))

	// Admin endpoints.
	admin := func(h http.HandlerFunc) http.Handler {
		return authn.Authenticate(middleware.RequireAdmin(h))
	}
	s.mux.Handle("POST "+prefix+"/admin/students", admin(studentAdmin.Create))
	s.mux.Handle("GET "+prefix+"/admin/students", admin(studentAdmin.List))
	s.mux.Handle("GET "+prefix+"/admin/students/{id}", admin(studentAdmin.Get))
	s.mux.Handle("PUT "+prefix+"/admin/students/{id}", admin(studentAdmin.Update))
	s.mux.Handle("DELETE "+prefix+"/admin/students/{id}", admin(studentAdmin.Delete))
	s.mux.Handle("GET "+prefix+"/admin/students/{id}/progress", admin(studentAdmin.Progress))

	s.mux.Handle("POST "+prefix+"/admin/memocards", admin(memocardAdmin.Create))
	s.mux.Handle("GET "+prefix+"/admin/memocards", admin(memocardAdmin.List))
	s.mux.Handle("GET "+prefix+"/admin/memocards/{id}", admin(memocardAdmin.Get))
	s.mux.Handle("PUT "+prefix+"/admin/memocards/{id}", admin(memocardAdmin.Update))
	s.mux.Handle("DELETE "+prefix+"/admin/memocards/{id}", admin(memocardAdmin.Delete))

	// Student endpoints. Admins pass the role check.
	studentOnly := func(h http.HandlerFunc) http.Handler {
		return authn.Authenticate(middleware.RequireStudent(h))
	}
	s.mux.Handle("GET "+prefix+"/student/profile", studentOnly(student.Profile))
	s.mux.Handle("PUT "+prefix+"/student/profile", studentOnly(student.UpdateProfile))
	s.mux.Handle("GET "+prefix+"/student/memocards", studentOnly(student.Memocards))
	s.mux.Handle("GET "+prefix+"/student/memocards/{id}", studentOnly(student.Memocard))
	s.mux.Handle("POST "+prefix+"/student/memocards/{id}/respond", studentOnly(student.Respond))
	s.mux.Handle("GET "+prefix+"/student/subjects", studentOnly(student.Subjects))
	s.mux.Handle("GET "+prefix+"/student/chapters", studentOnly(student.Chapters))
	s.mux.Handle("GET "+prefix+"/student/responses", studentOnly(student.Responses))
	s.mux.Handle("GET "+prefix+"/student/progress", studentOnly(student.Progress))
}

// rootHandler returns a welcome message with the running version.
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to " + s.config.AppName,
		"version": s.version,
	})
}

// healthHandler reports service health. It always returns HTTP 200;
// clients must check the status field.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := s.db.Ping(r.Context()); err != nil {
		status = "down"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"name":    s.config.AppName,
		"version": s.version,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set(constants.HeaderContentType, constants.MIMEApplicationJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Infof("Starting server on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server")
	return s.server.Shutdown(ctx)
}

// Run starts the server and blocks until a shutdown signal or a server
// error. On SIGINT/SIGTERM it drains in-flight requests before returning.
func (s *Server) Run() error {
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- s.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logging.Infof("Received signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		if err := s.Shutdown(ctx); err != nil {
			if err := s.server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}
	}

	return nil
}
