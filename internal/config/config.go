// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Audit engines.
const (
	EngineLighthouse = "lighthouse"
	EnginePageSpeed  = "pagespeed"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Queue     QueueConfig     `mapstructure:"queue"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	PageSpeed PageSpeedConfig `mapstructure:"pagespeed"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
}

// AuditConfig configures the audit runner.
type AuditConfig struct {
	Engine         string        `mapstructure:"engine"`
	Timeout        time.Duration `mapstructure:"timeout"`
	LighthousePath string        `mapstructure:"lighthouse_path"`
	ChromePath     string        `mapstructure:"chrome_path"`
}

// QueueConfig governs the audit scheduler.
type QueueConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
	MaxPending    int `mapstructure:"max_pending"`
}

// RateLimitConfig sets the per-IP sliding window.
type RateLimitConfig struct {
	PerIP  int           `mapstructure:"per_ip"`
	Window time.Duration `mapstructure:"window"`
}

// PageSpeedConfig configures the PageSpeed Insights client.
type PageSpeedConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Endpoint          string        `mapstructure:"endpoint"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// LoggingConfig toggles zap development features and file output.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// legacyEnv maps config keys to the unprefixed environment variables
// existing deployments set.
var legacyEnv = map[string]string{
	"server.port":          "PORT",
	"queue.max_concurrent": "MAX_CONCURRENT",
	"rate_limit.per_ip":    "RATE_LIMIT_PER_IP",
	"pagespeed.api_key":    "GOOGLE_API_KEY",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RANKRISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		prefixed := "RANKRISE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.request_timeout", "5m")
	v.SetDefault("server.shutdown_grace", "10s")
	v.SetDefault("audit.engine", EngineLighthouse)
	v.SetDefault("audit.timeout", "90s")
	v.SetDefault("audit.lighthouse_path", "lighthouse")
	v.SetDefault("audit.chrome_path", "")
	v.SetDefault("queue.max_concurrent", 2)
	v.SetDefault("queue.max_pending", 64)
	v.SetDefault("rate_limit.per_ip", 10)
	v.SetDefault("rate_limit.window", "1h")
	v.SetDefault("pagespeed.endpoint", "https://www.googleapis.com/pagespeedonline/v5/runPagespeed")
	v.SetDefault("pagespeed.timeout", "60s")
	v.SetDefault("pagespeed.requests_per_second", 4)
	v.SetDefault("pagespeed.burst", 4)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Queue.MaxConcurrent <= 0 {
		return errors.New("queue.max_concurrent must be > 0")
	}
	if c.Queue.MaxPending < 0 {
		return errors.New("queue.max_pending must be >= 0")
	}
	if c.RateLimit.PerIP <= 0 {
		return errors.New("rate_limit.per_ip must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("rate_limit.window must be > 0")
	}
	if c.Audit.Timeout <= 0 {
		return errors.New("audit.timeout must be > 0")
	}
	switch c.Audit.Engine {
	case EngineLighthouse:
		if c.Audit.LighthousePath == "" {
			return errors.New("audit.lighthouse_path must be set for the lighthouse engine")
		}
	case EnginePageSpeed:
		if c.PageSpeed.APIKey == "" {
			return errors.New("pagespeed.api_key must be set for the pagespeed engine")
		}
	default:
		return fmt.Errorf("audit.engine %q is not one of %s, %s", c.Audit.Engine, EngineLighthouse, EnginePageSpeed)
	}
	return nil
}

// ValidateProxy checks the settings the PageSpeed proxy needs on top of
// Validate. The proxy refuses to start without an API key.
func (c Config) ValidateProxy() error {
	if c.PageSpeed.APIKey == "" {
		return errors.New("GOOGLE_API_KEY environment variable not set")
	}
	if c.PageSpeed.Endpoint == "" {
		return errors.New("pagespeed.endpoint must be set")
	}
	return nil
}
