package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 3000, cfg.Server.Port)
	require.Equal(t, 2, cfg.Queue.MaxConcurrent)
	require.Equal(t, 64, cfg.Queue.MaxPending)
	require.Equal(t, 10, cfg.RateLimit.PerIP)
	require.Equal(t, time.Hour, cfg.RateLimit.Window)
	require.Equal(t, EngineLighthouse, cfg.Audit.Engine)
	require.Equal(t, 90*time.Second, cfg.Audit.Timeout)
	require.Equal(t, 5*time.Minute, cfg.Server.RequestTimeout)
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  request_timeout: 2m
audit:
  engine: pagespeed
  timeout: 45s
queue:
  max_concurrent: 4
  max_pending: 0
rate_limit:
  per_ip: 3
  window: 10m
pagespeed:
  api_key: file-key
  requests_per_second: 1.5
logging:
  development: true
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 2*time.Minute, cfg.Server.RequestTimeout)
	require.Equal(t, EnginePageSpeed, cfg.Audit.Engine)
	require.Equal(t, 45*time.Second, cfg.Audit.Timeout)
	require.Equal(t, 4, cfg.Queue.MaxConcurrent)
	require.Equal(t, 0, cfg.Queue.MaxPending)
	require.Equal(t, 3, cfg.RateLimit.PerIP)
	require.Equal(t, 10*time.Minute, cfg.RateLimit.Window)
	require.Equal(t, "file-key", cfg.PageSpeed.APIKey)
	require.InDelta(t, 1.5, cfg.PageSpeed.RequestsPerSecond, 0.0001)
	require.True(t, cfg.Logging.Development)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadLegacyEnvironment(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("MAX_CONCURRENT", "5")
	t.Setenv("RATE_LIMIT_PER_IP", "20")
	t.Setenv("GOOGLE_API_KEY", "legacy-key")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8081, cfg.Server.Port)
	require.Equal(t, 5, cfg.Queue.MaxConcurrent)
	require.Equal(t, 20, cfg.RateLimit.PerIP)
	require.Equal(t, "legacy-key", cfg.PageSpeed.APIKey)
	require.NoError(t, cfg.ValidateProxy())
}

func TestLoadPrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("RANKRISE_SERVER_PORT", "7070")
	t.Setenv("RANKRISE_QUEUE_MAX_PENDING", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, 7, cfg.Queue.MaxPending)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Server:    ServerConfig{Port: 3000},
		Audit:     AuditConfig{Engine: EngineLighthouse, Timeout: time.Second, LighthousePath: "lighthouse"},
		Queue:     QueueConfig{MaxConcurrent: 2},
		RateLimit: RateLimitConfig{PerIP: 10, Window: time.Hour},
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Config){
		"port":        func(c *Config) { c.Server.Port = 0 },
		"concurrency": func(c *Config) { c.Queue.MaxConcurrent = 0 },
		"pending":     func(c *Config) { c.Queue.MaxPending = -1 },
		"per ip":      func(c *Config) { c.RateLimit.PerIP = 0 },
		"window":      func(c *Config) { c.RateLimit.Window = 0 },
		"timeout":     func(c *Config) { c.Audit.Timeout = 0 },
		"engine":      func(c *Config) { c.Audit.Engine = "webpagetest" },
		"binary":      func(c *Config) { c.Audit.LighthousePath = "" },
		"psi key":     func(c *Config) { c.Audit.Engine = EnginePageSpeed },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateProxyRequiresKey(t *testing.T) {
	t.Parallel()

	cfg := Config{PageSpeed: PageSpeedConfig{Endpoint: "https://example.com"}}
	require.EqualError(t, cfg.ValidateProxy(), "GOOGLE_API_KEY environment variable not set")
	cfg.PageSpeed.APIKey = "k"
	require.NoError(t, cfg.ValidateProxy())
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	fromFile, err := Load(filepath.Join("..", "..", "rankrise.example.yaml"))
	require.NoError(t, err)
	defaults, err := Load("")
	require.NoError(t, err)
	require.Equal(t, defaults, fromFile)
}
