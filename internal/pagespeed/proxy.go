package pagespeed

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Anuar-boop/teamrankrise/internal/metrics"
	"github.com/Anuar-boop/teamrankrise/internal/middleware"
)

// Fetcher performs one upstream PSI call.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (Response, error)
}

// Proxy serves GET /api/pagespeed on top of a Fetcher.
type Proxy struct {
	router  chi.Router
	fetcher Fetcher
	logger  *zap.Logger
}

// NewProxy constructs a Proxy with middleware and routes.
func NewProxy(fetcher Fetcher, logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	p := &Proxy{fetcher: fetcher, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS)
	r.Use(metrics.Middleware)

	r.Get("/api/pagespeed", p.pagespeed)
	r.Handle("/metrics", metrics.Handler())
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	p.router = r
	return p
}

// Handler returns the Router for use with http.Server.
func (p *Proxy) Handler() http.Handler {
	return p.router
}

func (p *Proxy) pagespeed(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing url parameter")
		return
	}
	p.logger.Info("analyzing", zap.String("url", target))

	resp, err := p.fetcher.Fetch(r.Context(), target)
	switch {
	case errors.Is(err, ErrBadResponse):
		p.logger.Error("parse pagespeed response", zap.String("url", target), zap.Error(err))
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to parse API response")
		return
	case err != nil:
		p.logger.Error("pagespeed request failed", zap.String("url", target), zap.Error(err))
		middleware.WriteJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "Failed to reach Google API",
			"details": err.Error(),
		})
		return
	}

	if resp.StatusCode >= http.StatusBadRequest {
		p.logger.Warn("pagespeed API error",
			zap.String("url", target),
			zap.Int("status", resp.StatusCode),
		)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		p.logger.Debug("write pagespeed body", zap.Error(err))
	}
}
