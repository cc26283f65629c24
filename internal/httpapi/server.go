// Package httpapi exposes the diagnosis facade over HTTP, grounded on the
// teacher's internal/interfaces/http/server.go: a mux.Router with a small
// middleware chain, wrapped in a *http.Server with explicit timeouts.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/lppldiag/internal/diagnose"
)

// ServerConfig holds the bind address and timeouts.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig mirrors the teacher's local-only default bind.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "127.0.0.1:8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // a sweep can legitimately run tens of seconds
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the engine's read-mostly HTTP surface: one diagnose endpoint
// and a health check, per §6.
type Server struct {
	router *mux.Router
	server *http.Server
	facade *diagnose.Facade
	config ServerConfig
}

// NewServer builds a Server wired to facade.
func NewServer(facade *diagnose.Facade, config ServerConfig) *Server {
	router := mux.NewRouter()
	s := &Server{router: router, facade: facade, config: config}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(requestIDMiddleware)
	s.router.Use(loggingMiddleware)

	s.router.HandleFunc("/v1/diagnose/{symbol}", s.handleDiagnose).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(notFound)
}

// Start runs the server until it errors or is shut down.
func (s *Server) Start() error {
	log.Info().Str("addr", s.config.Addr).Msg("http server starting")
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "not_found", "the requested endpoint does not exist")
}
