package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultAuditTimeout = 90 * time.Second

// CommandFunc runs an external program and returns its stdout.
type CommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// LighthouseConfig controls the Lighthouse runner.
type LighthouseConfig struct {
	// BinaryPath is the lighthouse CLI executable.
	BinaryPath string
	// Timeout bounds browser launch plus the audit itself.
	Timeout time.Duration
}

// LighthouseRunner audits URLs with the lighthouse CLI attached to a fresh
// headless browser per call.
type LighthouseRunner struct {
	cfg      LighthouseConfig
	launcher BrowserLauncher
	command  CommandFunc
	clock    Clock
	logger   *zap.Logger
}

// LighthouseOption customizes a LighthouseRunner.
type LighthouseOption func(*LighthouseRunner)

// WithCommand replaces the process runner used to invoke lighthouse.
func WithCommand(fn CommandFunc) LighthouseOption {
	return func(r *LighthouseRunner) { r.command = fn }
}

// NewLighthouseRunner constructs a LighthouseRunner.
func NewLighthouseRunner(
	cfg LighthouseConfig,
	launcher BrowserLauncher,
	clock Clock,
	logger *zap.Logger,
	opts ...LighthouseOption,
) *LighthouseRunner {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "lighthouse"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultAuditTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &LighthouseRunner{
		cfg:      cfg,
		launcher: launcher,
		command:  runCommand,
		clock:    clock,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run audits targetURL. The browser is released on every exit path.
func (r *LighthouseRunner) Run(ctx context.Context, targetURL string) (Result, error) {
	auditURL, err := NormalizeURL(targetURL)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	browser, err := r.launcher.Launch(ctx)
	if err != nil {
		return Result{}, r.classify(ctx, fmt.Errorf("launch browser: %w", err))
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			r.logger.Warn("browser close failed", zap.String("url", auditURL), zap.Error(cerr))
		}
	}()
	r.logger.Debug("browser ready",
		zap.String("url", auditURL),
		zap.Int("port", browser.Port()),
		zap.String("version", browser.Version()),
	)

	out, err := r.command(ctx, r.cfg.BinaryPath, r.args(auditURL, browser.Port())...)
	if err != nil {
		return Result{}, r.classify(ctx, err)
	}
	rep, err := ParseReport(out)
	if err != nil {
		return Result{}, err
	}
	res, err := BuildResult(auditURL, r.clock.Now(), rep)
	if err != nil {
		return Result{}, err
	}
	r.logger.Info("lighthouse audit finished",
		zap.String("url", auditURL),
		zap.Int("performance", res.Categories.Performance),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (r *LighthouseRunner) args(auditURL string, port int) []string {
	return []string{
		auditURL,
		"--port=" + strconv.Itoa(port),
		"--output=json",
		"--output-path=stdout",
		"--quiet",
		"--only-categories=" + strings.Join(CategoryIDs(), ","),
	}
}

func (r *LighthouseRunner) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrAuditTimeout, r.cfg.Timeout)
	}
	return fmt.Errorf("%w: %w", ErrToolFailure, err)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 5 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if tail := lastLine(stderr.String()); tail != "" {
			return nil, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, tail)
		}
		return nil, fmt.Errorf("%s: %w", filepath.Base(name), err)
	}
	return out, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
