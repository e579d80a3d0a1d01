// Package statusapi serves the local control surface for a live session:
// health, metrics, transcript and suggestion snapshots, and the
// start/stop/retry actions a viewer page drives.
package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/malu-zinha/compass-live/internal/config"
	"github.com/malu-zinha/compass-live/internal/metrics"
	"github.com/malu-zinha/compass-live/internal/session"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, sess *session.Session, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	// Health and metrics — no auth
	health := NewHealthHandler(sess, version, startTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))

		h := &SessionHandler{sess: sess, log: log}
		r.Post("/api/v1/session/start", h.Start)
		r.Post("/api/v1/session/stop", h.Stop)
		r.Post("/api/v1/session/retry-upload", h.RetryUpload)
		r.Get("/api/v1/session", h.Status)
		r.Get("/api/v1/transcript", h.Transcript)
		r.Get("/api/v1/suggestions", h.Suggestions)
		r.Post("/api/v1/suggestions/{id}/accept", h.Accept)
		r.Post("/api/v1/suggestions/{id}/reject", h.Reject)
		r.Put("/api/v1/notes", h.Notes)
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }
