// Package server holds the HTTP server, its middleware chain and the
// request-scoped logging helpers used by handlers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Option configures a Server.
type Option func(*Server)

// WithRequestTimeout bounds how long a handler may run. Stage requests chain
// several model calls, so the default is generous.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithAllowedOrigins sets the CORS origins. "*" allows any.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger

	requestTimeout time.Duration
	allowedOrigins []string
	httpServer     *http.Server
}

func New(port int, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		Port:           port,
		logger:         logger,
		requestTimeout: 10 * time.Minute,
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware(s.allowedOrigins))
	r.Use(TimeoutMiddleware(s.requestTimeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "uxcritique",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}))
	})

	s.Router = r
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 30 * time.Second,
	}
	return s
}

// CORSMiddleware answers preflight requests and sets the CORS response
// headers for the given origins.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID", "X-Cache"},
		MaxAge:         300,
	})
}

// Start serves until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping server")
	return s.httpServer.Shutdown(ctx)
}
