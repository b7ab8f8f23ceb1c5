package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Anuar-boop/teamrankrise/internal/api"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the audit API",
		Long: `Serves GET /api/audit?url=... and GET /health. Audits run on a fixed
pool of workers (queue.max_concurrent) fed by a FIFO queue; each client IP may
start rate_limit.per_ip audits per rate_limit.window.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := appInstance.Runner()
	if err != nil {
		return fmt.Errorf("init audit runner: %w", err)
	}
	sched := appInstance.Scheduler(runner)
	// Audits outlive the signal; Shutdown cancels them once the grace period ends.
	sched.Start(context.WithoutCancel(ctx))

	server := api.NewServer(
		sched,
		appInstance.Limiter(ctx),
		appInstance.Clock(),
		api.Config{
			RequestTimeout: cfg.Server.RequestTimeout,
			Window:         cfg.RateLimit.Window,
		},
		logger.Named("api"),
	)

	logger.Info("audit service configured",
		zap.String("engine", cfg.Audit.Engine),
		zap.Int("max_concurrent", cfg.Queue.MaxConcurrent),
		zap.Int("rate_limit_per_ip", cfg.RateLimit.PerIP),
		zap.Duration("audit_timeout", cfg.Audit.Timeout),
	)
	srv := newHTTPServer(cfg.Server.Port, server.Handler())
	return serveHTTP(ctx, srv, logger, cfg.Server.ShutdownGrace, sched.Shutdown)
}

func newHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serveHTTP runs srv until ctx ends, then drains within grace. beforeShutdown
// runs first so handlers blocked on queued work can return.
func serveHTTP(
	ctx context.Context,
	srv *http.Server,
	logger *zap.Logger,
	grace time.Duration,
	beforeShutdown func(context.Context) error,
) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	}
	return serveListener(ctx, srv, ln, logger, grace, beforeShutdown)
}

func serveListener(
	ctx context.Context,
	srv *http.Server,
	ln net.Listener,
	logger *zap.Logger,
	grace time.Duration,
	beforeShutdown func(context.Context) error,
) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	var errs []error
	if beforeShutdown != nil {
		if err := beforeShutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	logger.Info("shutdown complete")
	return errors.Join(errs...)
}
