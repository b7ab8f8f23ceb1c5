// Package app holds the long-lived services shared by the commands and
// builds the audit components from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Anuar-boop/teamrankrise/internal/audit"
	"github.com/Anuar-boop/teamrankrise/internal/clock"
	"github.com/Anuar-boop/teamrankrise/internal/config"
	"github.com/Anuar-boop/teamrankrise/internal/id/uuid"
	"github.com/Anuar-boop/teamrankrise/internal/logging"
	"github.com/Anuar-boop/teamrankrise/internal/pagespeed"
	"github.com/Anuar-boop/teamrankrise/internal/ratelimit"
	"github.com/Anuar-boop/teamrankrise/internal/scheduler"
)

// janitorInterval is how often idle limiter clients are forgotten.
const janitorInterval = 10 * time.Minute

// App holds configuration plus the logger, clock and ID source every
// component shares.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  audit.Clock
	ids    audit.IDGenerator
}

// New builds an App from cfg, creating the zap logger it describes.
func New(cfg config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return NewWithLogger(cfg, logger), nil
}

// NewWithLogger builds an App around an existing logger.
func NewWithLogger(cfg config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		clock:  clock.NewSystem(),
		ids:    uuid.New(),
	}
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Clock returns the shared clock.
func (a *App) Clock() audit.Clock { return a.clock }

// PageSpeedClient builds a throttled PSI client.
func (a *App) PageSpeedClient() *pagespeed.Client {
	ps := a.cfg.PageSpeed
	return pagespeed.NewClient(pagespeed.Config{
		APIKey:            ps.APIKey,
		Endpoint:          ps.Endpoint,
		Timeout:           ps.Timeout,
		RequestsPerSecond: ps.RequestsPerSecond,
		Burst:             ps.Burst,
	}, nil, a.logger.Named("pagespeed"))
}

// Runner builds the audit engine selected by audit.engine.
func (a *App) Runner() (audit.Runner, error) {
	switch a.cfg.Audit.Engine {
	case config.EngineLighthouse:
		launcher := audit.NewChromeLauncher(audit.ChromeConfig{
			ExecPath: a.cfg.Audit.ChromePath,
		}, a.logger.Named("chrome"))
		return audit.NewLighthouseRunner(audit.LighthouseConfig{
			BinaryPath: a.cfg.Audit.LighthousePath,
			Timeout:    a.cfg.Audit.Timeout,
		}, launcher, a.clock, a.logger.Named("lighthouse")), nil
	case config.EnginePageSpeed:
		return pagespeed.NewRunner(a.PageSpeedClient(), a.cfg.Audit.Timeout, a.clock, a.logger.Named("pagespeed")), nil
	default:
		return nil, fmt.Errorf("unknown audit engine %q", a.cfg.Audit.Engine)
	}
}

// Limiter builds the per-IP limiter and starts its janitor, which stops
// with ctx.
func (a *App) Limiter(ctx context.Context) *ratelimit.SlidingWindow {
	limiter := ratelimit.New(ratelimit.Config{
		Limit:  a.cfg.RateLimit.PerIP,
		Window: a.cfg.RateLimit.Window,
	})
	limiter.StartJanitor(ctx, janitorInterval, a.clock.Now)
	return limiter
}

// Scheduler builds an unstarted scheduler around runner.
func (a *App) Scheduler(runner audit.Runner) *scheduler.Scheduler {
	return scheduler.New(runner, scheduler.Config{
		Concurrency: a.cfg.Queue.MaxConcurrent,
		MaxPending:  a.cfg.Queue.MaxPending,
	}, a.ids, a.clock, a.logger.Named("scheduler"))
}

// Close flushes buffered log entries.
func (a *App) Close() {
	// Sync on a terminal returns EINVAL/ENOTTY; nothing useful to do with it.
	_ = a.logger.Sync()
}
