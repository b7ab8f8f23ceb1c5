// Package pagespeed talks to the Google PageSpeed Insights API. It provides
// the throttled upstream client, the /api/pagespeed proxy handler and an
// audit.Runner backed by PSI.
package pagespeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Anuar-boop/teamrankrise/internal/audit"
	"github.com/Anuar-boop/teamrankrise/internal/metrics"
)

const (
	// DefaultEndpoint is the PSI v5 runPagespeed URL.
	DefaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

	defaultTimeout  = 60 * time.Second
	maxResponseSize = 32 << 20
)

var (
	// ErrUnreachable reports a transport failure talking to PSI.
	ErrUnreachable = errors.New("pagespeed upstream unreachable")
	// ErrBadResponse reports an upstream body that is not valid JSON.
	ErrBadResponse = errors.New("pagespeed upstream returned invalid JSON")
)

// Config controls the PSI client.
type Config struct {
	APIKey   string
	Endpoint string
	// Timeout bounds one upstream call, including the body read.
	Timeout time.Duration
	// RequestsPerSecond and Burst size the outbound token bucket. A zero
	// rate disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// Response is an upstream reply passed through untouched.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client calls runPagespeed with a fixed category set and mobile strategy.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient constructs a Client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	metrics.Init()
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: limiter,
		logger:  logger,
	}
}

// RequestURL builds the upstream URL for target.
func (c *Client) RequestURL(target string) string {
	var b strings.Builder
	b.WriteString(c.cfg.Endpoint)
	b.WriteString("?url=")
	b.WriteString(url.QueryEscape(target))
	for _, category := range audit.CategoryIDs() {
		b.WriteString("&category=")
		b.WriteString(category)
	}
	b.WriteString("&strategy=mobile&key=")
	b.WriteString(url.QueryEscape(c.cfg.APIKey))
	return b.String()
}

// Fetch runs one PSI analysis of target. Any valid JSON body is returned
// with its status code, including upstream error documents.
func (c *Client) Fetch(ctx context.Context, target string) (Response, error) {
	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("%w: wait for quota: %w", ErrUnreachable, err)
	}
	if waited := time.Since(waitStart); waited > 10*time.Millisecond {
		c.logger.Debug("pagespeed call throttled", zap.Duration("waited", waited))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(target), nil)
	if err != nil {
		return Response{}, fmt.Errorf("%w: build request: %w", ErrUnreachable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObservePageSpeedUpstream(0)
		return Response{}, fmt.Errorf("%w: %w", ErrUnreachable, redact(err, c.cfg.APIKey))
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close pagespeed body", zap.Error(cerr))
		}
	}()
	metrics.ObservePageSpeedUpstream(resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read body: %w", ErrUnreachable, redact(err, c.cfg.APIKey))
	}
	if !json.Valid(body) {
		return Response{}, fmt.Errorf("%w (status %d)", ErrBadResponse, resp.StatusCode)
	}
	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// redact strips the API key from transport errors, which embed the URL.
func redact(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
