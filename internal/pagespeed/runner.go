package pagespeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Anuar-boop/teamrankrise/internal/audit"
)

// psiEnvelope is the part of a runPagespeed reply the runner reads.
type psiEnvelope struct {
	LighthouseResult *audit.Report `json:"lighthouseResult"`
	Error            *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Runner is an audit.Runner that delegates the audit to PSI.
type Runner struct {
	fetcher Fetcher
	timeout time.Duration
	clock   audit.Clock
	logger  *zap.Logger
}

// NewRunner constructs a Runner. timeout bounds each audit.
func NewRunner(fetcher Fetcher, timeout time.Duration, clock audit.Clock, logger *zap.Logger) *Runner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{fetcher: fetcher, timeout: timeout, clock: clock, logger: logger}
}

// Run audits targetURL through PSI and shapes the embedded Lighthouse
// result like a local run.
func (r *Runner) Run(ctx context.Context, targetURL string) (audit.Result, error) {
	auditURL, err := audit.NormalizeURL(targetURL)
	if err != nil {
		return audit.Result{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.fetcher.Fetch(ctx, auditURL)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return audit.Result{}, fmt.Errorf("%w after %s", audit.ErrAuditTimeout, r.timeout)
		}
		return audit.Result{}, fmt.Errorf("%w: %w", audit.ErrToolFailure, err)
	}

	var env psiEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return audit.Result{}, fmt.Errorf("%w: decode pagespeed reply: %w", audit.ErrToolFailure, err)
	}
	if env.Error != nil {
		return audit.Result{}, fmt.Errorf("%w: pagespeed error %d: %s",
			audit.ErrToolFailure, env.Error.Code, env.Error.Message)
	}
	if env.LighthouseResult == nil {
		return audit.Result{}, fmt.Errorf("%w: pagespeed reply (status %d) has no lighthouseResult",
			audit.ErrToolFailure, resp.StatusCode)
	}

	res, err := audit.BuildResult(auditURL, r.clock.Now(), *env.LighthouseResult)
	if err != nil {
		return audit.Result{}, err
	}
	r.logger.Info("pagespeed audit finished",
		zap.String("url", auditURL),
		zap.Int("performance", res.Categories.Performance),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}
