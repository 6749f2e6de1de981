// Package server exposes the analytics views as a JSON HTTP API for chart front ends.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/KaramelBytes/animelens/internal/config"
	"github.com/KaramelBytes/animelens/internal/dataset"
	"github.com/KaramelBytes/animelens/internal/estimate"
	"github.com/KaramelBytes/animelens/internal/logging"
)

// Server serves one dataset file. Every request reads an immutable table
// snapshot from the cache, so a reload between requests never mixes revisions
// within a response.
type Server struct {
	cfg     *config.Global
	cache   *dataset.Cache
	path    string
	started time.Time

	mu       sync.Mutex
	model    *estimate.Model
	modelRev dataset.Revision
}

// New returns a server for the dataset at path.
func New(cfg *config.Global, cache *dataset.Cache, path string) *Server {
	return &Server{cfg: cfg, cache: cache, path: path, started: time.Now()}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/top", s.handleTop)
		r.Route("/trend", func(r chi.Router) {
			r.Get("/score", s.handleTrendScore)
			r.Get("/count", s.handleTrendCount)
		})
		r.Get("/correlation", s.handleCorrelation)
		r.Get("/histogram", s.handleHistogram)
		r.Get("/crosstab", s.handleCrosstab)
		r.Get("/engagement", s.handleEngagement)
		r.Get("/recommend", s.handleRecommend)
		r.Get("/model", s.handleModel)
		r.Post("/predict", s.handlePredict)
	})
	return r
}

// ListenAndServe serves on the configured address until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ServerAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Str("data", s.path).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logging.Info().Msg("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// table returns the current snapshot.
func (s *Server) table() (*dataset.Table, error) {
	return s.cache.Get(s.path)
}

// modelFor fits the score model once per table revision.
func (s *Server) modelFor(t *dataset.Table) (*estimate.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model != nil && s.modelRev == t.Revision {
		return s.model, nil
	}
	m, err := estimate.Fit(t.Records, estimate.FitOptions{Lambda: s.cfg.RidgeLambda})
	if err != nil {
		return nil, err
	}
	m.Source = t.Revision.Path
	s.model, s.modelRev = m, t.Revision
	return m, nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.With("http").Debug().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
