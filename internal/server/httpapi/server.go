// Package httpapi exposes the REST surface of the inspection backend and the
// access-control gate protecting it.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/car2chain/inspections/internal/logging"
	"github.com/car2chain/inspections/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wires the HTTP router to the services. It holds no request state of
// its own; sessions live in the session service's store.
type Server struct {
	address     string
	logger      logging.Logger
	sessions    *services.SessionService
	credentials *services.CredentialService
	reports     *services.ReportService

	maxBodyBytes int64
	// uploadsDir, when non-empty, mounts a read-only static route serving
	// stored image bytes (local blob backend only).
	uploadsDir string

	started time.Time
}

func NewServer(address string, l logging.Logger, sessions *services.SessionService,
	credentials *services.CredentialService, reports *services.ReportService,
	maxBodyBytes int64, uploadsDir string) *Server {
	return &Server{
		address:      address,
		logger:       l.With("module", "http_server"),
		sessions:     sessions,
		credentials:  credentials,
		reports:      reports,
		maxBodyBytes: maxBodyBytes,
		uploadsDir:   uploadsDir,
		started:      time.Now(),
	}
}

// Router builds the chi router. Protected routes always sit behind the
// session gate; there is no mode without authentication.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(s.maxBodyBytes))

	r.Get("/", s.handleRoot)
	r.Get("/api/health", s.handleHealth)

	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Get("/api/auth/verify", s.handleVerify)
		r.Post("/api/auth/change-password", s.handleChangePassword)

		r.Route("/api/reports", func(r chi.Router) {
			r.Post("/", s.handleCreateReport)
			r.Get("/", s.handleListReports)
			r.Get("/{id}", s.handleGetReport)
			r.Put("/{id}", s.handleUpdateReport)
		})
	})

	if s.uploadsDir != "" {
		fileServer := http.FileServer(http.Dir(s.uploadsDir))
		r.Method(http.MethodGet, "/uploads/*", http.StripPrefix("/uploads/", fileServer))
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
