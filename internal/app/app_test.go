package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Anuar-boop/teamrankrise/internal/audit"
	"github.com/Anuar-boop/teamrankrise/internal/config"
	"github.com/Anuar-boop/teamrankrise/internal/pagespeed"
)

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 3000},
		Audit: config.AuditConfig{
			Engine:         config.EngineLighthouse,
			Timeout:        90 * time.Second,
			LighthousePath: "lighthouse",
		},
		Queue:     config.QueueConfig{MaxConcurrent: 3, MaxPending: 5},
		RateLimit: config.RateLimitConfig{PerIP: 7, Window: time.Hour},
		PageSpeed: config.PageSpeedConfig{
			APIKey:            "k",
			Endpoint:          pagespeed.DefaultEndpoint,
			Timeout:           time.Minute,
			RequestsPerSecond: 4,
			Burst:             4,
		},
		Logging: config.LoggingConfig{Level: "info"},
	}
}

func TestNewBuildsLogger(t *testing.T) {
	t.Parallel()

	a, err := New(testConfig())
	require.NoError(t, err)
	require.NotNil(t, a.Logger())
	require.False(t, a.Clock().Now().IsZero())
	a.Close()

	cfg := testConfig()
	cfg.Logging.Level = "loud"
	_, err = New(cfg)
	require.ErrorContains(t, err, "init logger")
}

func TestRunnerSelection(t *testing.T) {
	t.Parallel()

	a := NewWithLogger(testConfig(), zap.NewNop())
	r, err := a.Runner()
	require.NoError(t, err)
	require.IsType(t, &audit.LighthouseRunner{}, r)

	cfg := testConfig()
	cfg.Audit.Engine = config.EnginePageSpeed
	r, err = NewWithLogger(cfg, nil).Runner()
	require.NoError(t, err)
	require.IsType(t, &pagespeed.Runner{}, r)

	cfg.Audit.Engine = "webpagetest"
	_, err = NewWithLogger(cfg, nil).Runner()
	require.ErrorContains(t, err, "unknown audit engine")
}

func TestLimiterAndScheduler(t *testing.T) {
	t.Parallel()

	a := NewWithLogger(testConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := a.Limiter(ctx)
	require.Equal(t, 7, limiter.Limit())
	require.Equal(t, time.Hour, limiter.Window())

	s := a.Scheduler(audit.RunnerFunc(func(context.Context, string) (audit.Result, error) {
		return audit.Result{}, nil
	}))
	require.Equal(t, 3, s.Concurrency())
}
