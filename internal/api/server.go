package api

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Anuar-boop/teamrankrise/internal/audit"
	"github.com/Anuar-boop/teamrankrise/internal/metrics"
	"github.com/Anuar-boop/teamrankrise/internal/middleware"
	"github.com/Anuar-boop/teamrankrise/internal/ratelimit"
	"github.com/Anuar-boop/teamrankrise/internal/scheduler"
)

// Limiter decides whether a client may start another audit.
type Limiter interface {
	Decide(client string, now time.Time) ratelimit.Decision
}

// Scheduler queues audits and reports occupancy.
type Scheduler interface {
	Submit(targetURL string) (*scheduler.Job, error)
	Stats() scheduler.Stats
}

// Config controls Server behavior.
type Config struct {
	// RequestTimeout bounds a request including queue wait. Zero disables it.
	RequestTimeout time.Duration
	// Window is the limiter window, used in the 429 message.
	Window time.Duration
}

// Server wires HTTP handlers to the limiter and scheduler.
type Server struct {
	router  chi.Router
	limiter Limiter
	sched   Scheduler
	clock   audit.Clock
	cfg     Config
	logger  *zap.Logger
}

type auditFailure struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

type healthResponse struct {
	Status       string    `json:"status"`
	ActiveAudits int       `json:"activeAudits"`
	QueuedAudits int       `json:"queuedAudits"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	sched Scheduler,
	limiter Limiter,
	clock audit.Clock,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		limiter: limiter,
		sched:   sched,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS)
	r.Use(middleware.NoCache)
	r.Use(metrics.Middleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/api/audit", s.audit)
	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) audit(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing url parameter")
		return
	}

	client := clientIP(r)
	decision := s.limiter.Decide(client, s.clock.Now())
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	if !decision.Allowed {
		metrics.ObserveRateLimited()
		s.logger.Info("rate limit exceeded", zap.String("client", client))
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
		middleware.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
			"error":   "Rate limit exceeded",
			"message": fmt.Sprintf("Maximum %d audits per %s", decision.Limit, windowName(s.cfg.Window)),
		})
		return
	}

	normalized, err := audit.NormalizeURL(target)
	if err != nil {
		s.writeAuditFailure(w, target, err)
		return
	}

	job, err := s.sched.Submit(normalized)
	if err != nil {
		s.writeSubmitError(w, target, err)
		return
	}
	s.logger.Info("audit requested",
		zap.String("job_id", job.ID),
		zap.String("url", normalized),
		zap.String("client", client),
	)

	res, err := job.Wait(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			s.logger.Info("client gave up waiting",
				zap.String("job_id", job.ID),
				zap.String("url", normalized),
				zap.Error(r.Context().Err()),
			)
			return
		}
		if errors.Is(err, scheduler.ErrShuttingDown) {
			s.writeSubmitError(w, target, err)
			return
		}
		s.writeAuditFailure(w, target, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) writeAuditFailure(w http.ResponseWriter, target string, err error) {
	middleware.WriteJSON(w, http.StatusBadRequest, auditFailure{
		Error:   "Audit failed",
		Message: audit.Message(err),
		URL:     target,
	})
}

func (s *Server) writeSubmitError(w http.ResponseWriter, target string, err error) {
	switch {
	case errors.Is(err, scheduler.ErrQueueFull):
		metrics.ObserveBusy()
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "Server busy",
			"message": "Too many audits are queued, please retry later",
		})
	case errors.Is(err, scheduler.ErrShuttingDown):
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "Server busy",
			"message": "Server is shutting down",
		})
	default:
		s.logger.Error("submit audit failed", zap.String("url", target), zap.Error(err))
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	stats := s.sched.Stats()
	middleware.WriteJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		ActiveAudits: stats.Active,
		QueuedAudits: stats.Queued,
		Timestamp:    s.clock.Now(),
	})
}

// clientIP is the caller identity used for rate limiting. RealIP has already
// replaced RemoteAddr with the forwarded address when one was sent.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func windowName(d time.Duration) string {
	switch d {
	case time.Hour:
		return "hour"
	case time.Minute:
		return "minute"
	default:
		return d.String()
	}
}
