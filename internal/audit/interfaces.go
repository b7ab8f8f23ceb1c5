package audit

import (
	"context"
	"time"
)

// Runner audits a single URL.
type Runner interface {
	Run(ctx context.Context, targetURL string) (Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, targetURL string) (Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, targetURL string) (Result, error) {
	return f(ctx, targetURL)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Browser is a running headless browser reachable over the DevTools protocol.
type Browser interface {
	// Port is the remote debugging port the audit tool attaches to.
	Port() int
	// Version is the browser product string, e.g. "HeadlessChrome/126.0".
	Version() string
	// Close kills the browser process. It is safe to call more than once.
	Close() error
}

// BrowserLauncher starts one browser per audit.
type BrowserLauncher interface {
	Launch(ctx context.Context) (Browser, error)
}
