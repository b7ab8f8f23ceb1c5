package audit

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromeConfig controls how headless Chrome is started.
type ChromeConfig struct {
	// ExecPath overrides chromedp's browser discovery when set.
	ExecPath string
}

// ChromeLauncher starts headless Chrome with chromedp and exposes its remote
// debugging port for the audit tool.
type ChromeLauncher struct {
	cfg    ChromeConfig
	logger *zap.Logger
}

// NewChromeLauncher creates a ChromeLauncher.
func NewChromeLauncher(cfg ChromeConfig, logger *zap.Logger) *ChromeLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeLauncher{cfg: cfg, logger: logger}
}

// Launch starts a browser bound to ctx; cancelling ctx kills it as well.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	port, err := freePort()
	if err != nil {
		return nil, err
	}
	portFlag := "--remote-debugging-port=" + strconv.Itoa(port)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("remote-debugging-port", strconv.Itoa(port)),
		chromedp.ModifyCmdFunc(func(cmd *exec.Cmd) {
			cmd.Args = pinDebuggingPort(cmd.Args, portFlag)
		}),
	)
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	var product string
	probe := chromedp.ActionFunc(func(ctx context.Context) error {
		_, p, _, _, _, err := browser.GetVersion().Do(ctx)
		if err != nil {
			return fmt.Errorf("get browser version: %w", err)
		}
		product = p
		return nil
	})
	if err := chromedp.Run(browserCtx, probe); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	l.logger.Debug("chrome started", zap.Int("port", port), zap.String("version", product))
	return &chromeBrowser{
		port:          port,
		version:       product,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

type chromeBrowser struct {
	port          int
	version       string
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

func (b *chromeBrowser) Port() int       { return b.port }
func (b *chromeBrowser) Version() string { return b.version }

// Close asks Chrome to exit, then cancels the allocator, which kills the
// process if it is still alive and removes its profile directory.
func (b *chromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		if err := chromedp.Cancel(b.browserCtx); err != nil {
			b.closeErr = fmt.Errorf("close chrome: %w", err)
		}
		b.browserCancel()
		b.allocCancel()
	})
	return b.closeErr
}

// pinDebuggingPort drops any remote-debugging-port argument other than want.
func pinDebuggingPort(args []string, want string) []string {
	out := args[:0]
	seen := false
	for _, arg := range args {
		if strings.HasPrefix(arg, "--remote-debugging-port=") {
			if arg != want || seen {
				continue
			}
			seen = true
		}
		out = append(out, arg)
	}
	if !seen {
		out = append(out, want)
	}
	return out
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("reserve debugging port: %w", err)
	}
	defer ln.Close()
	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("reserve debugging port: unexpected address %v", ln.Addr())
	}
	return addr.Port, nil
}
