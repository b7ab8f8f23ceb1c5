package audit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeBrowser struct {
	port   int
	closed atomic.Int32
}

func (b *fakeBrowser) Port() int       { return b.port }
func (b *fakeBrowser) Version() string { return "HeadlessChrome/test" }
func (b *fakeBrowser) Close() error {
	b.closed.Add(1)
	return nil
}

type fakeLauncher struct {
	browser  *fakeBrowser
	err      error
	launches atomic.Int32
}

func (l *fakeLauncher) Launch(context.Context) (Browser, error) {
	l.launches.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return l.browser, nil
}

func newTestRunner(t *testing.T, launcher BrowserLauncher, cmd CommandFunc, timeout time.Duration) *LighthouseRunner {
	t.Helper()
	return NewLighthouseRunner(
		LighthouseConfig{BinaryPath: "/usr/bin/lighthouse", Timeout: timeout},
		launcher,
		fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)},
		zap.NewNop(),
		WithCommand(cmd),
	)
}

func TestLighthouseRunnerSuccess(t *testing.T) {
	t.Parallel()

	fixture := loadFixture(t)
	launcher := &fakeLauncher{browser: &fakeBrowser{port: 9222}}
	var gotName string
	var gotArgs []string
	runner := newTestRunner(t, launcher, func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return fixture, nil
	}, time.Second)

	res, err := runner.Run(context.Background(), "example.com")
	require.NoError(t, err)

	require.Equal(t, "https://example.com", res.URL)
	require.Equal(t, 87, res.Categories.Performance)
	require.Equal(t, 100, res.Categories.Accessibility)
	require.Len(t, res.Opportunities, 4)
	require.Equal(t, "/usr/bin/lighthouse", gotName)
	require.Equal(t, []string{
		"https://example.com",
		"--port=9222",
		"--output=json",
		"--output-path=stdout",
		"--quiet",
		"--only-categories=performance,accessibility,best-practices,seo",
	}, gotArgs)
	require.EqualValues(t, 1, launcher.browser.closed.Load())
}

func TestLighthouseRunnerSchemelessMatchesPrefixed(t *testing.T) {
	t.Parallel()

	fixture := loadFixture(t)
	var seen []string
	cmd := func(_ context.Context, _ string, args ...string) ([]byte, error) {
		seen = append(seen, args[0])
		return fixture, nil
	}
	runner := newTestRunner(t, &fakeLauncher{browser: &fakeBrowser{port: 1}}, cmd, time.Second)

	bare, err := runner.Run(context.Background(), "example.com")
	require.NoError(t, err)
	prefixed, err := runner.Run(context.Background(), "https://example.com")
	require.NoError(t, err)

	require.Equal(t, prefixed.Categories, bare.Categories)
	require.Equal(t, prefixed.URL, bare.URL)
	require.Equal(t, seen[0], seen[1])
}

func TestLighthouseRunnerInvalidURLSkipsBrowser(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{browser: &fakeBrowser{}}
	runner := newTestRunner(t, launcher, nil, time.Second)

	_, err := runner.Run(context.Background(), "ftp://example.com")
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Zero(t, launcher.launches.Load())
}

func TestLighthouseRunnerLaunchFailure(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{err: errors.New("chrome not found")}
	runner := newTestRunner(t, launcher, nil, time.Second)

	_, err := runner.Run(context.Background(), "https://example.com")
	require.ErrorIs(t, err, ErrToolFailure)
	require.Contains(t, err.Error(), "chrome not found")
}

func TestLighthouseRunnerReleasesBrowserOnToolError(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{browser: &fakeBrowser{port: 1}}
	runner := newTestRunner(t, launcher, func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("lighthouse: exit status 1: Unable to connect to Chrome")
	}, time.Second)

	_, err := runner.Run(context.Background(), "https://example.com")
	require.ErrorIs(t, err, ErrToolFailure)
	require.Contains(t, Message(err), "Unable to connect to Chrome")
	require.EqualValues(t, 1, launcher.browser.closed.Load())
}

func TestLighthouseRunnerReleasesBrowserOnBadReport(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{browser: &fakeBrowser{port: 1}}
	runner := newTestRunner(t, launcher, func(context.Context, string, ...string) ([]byte, error) {
		return []byte("not json"), nil
	}, time.Second)

	_, err := runner.Run(context.Background(), "https://example.com")
	require.ErrorIs(t, err, ErrToolFailure)
	require.EqualValues(t, 1, launcher.browser.closed.Load())
}

func TestLighthouseRunnerTimeout(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{browser: &fakeBrowser{port: 1}}
	runner := newTestRunner(t, launcher, func(ctx context.Context, _ string, _ ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, 20*time.Millisecond)

	_, err := runner.Run(context.Background(), "https://example.com")
	require.ErrorIs(t, err, ErrAuditTimeout)
	require.NotErrorIs(t, err, ErrToolFailure)
	require.EqualValues(t, 1, launcher.browser.closed.Load())
}

func TestLighthouseRunnerReleasesBrowserOnPanic(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{browser: &fakeBrowser{port: 1}}
	runner := newTestRunner(t, launcher, func(context.Context, string, ...string) ([]byte, error) {
		panic("tool exploded")
	}, time.Second)

	require.Panics(t, func() {
		_, _ = runner.Run(context.Background(), "https://example.com")
	})
	require.EqualValues(t, 1, launcher.browser.closed.Load())
}

func TestRunCommandReportsStderr(t *testing.T) {
	t.Parallel()

	_, err := runCommand(context.Background(), "sh", "-c", "echo first >&2; echo 'last line' >&2; exit 3")
	require.Error(t, err)
	require.Contains(t, err.Error(), "last line")
	require.NotContains(t, err.Error(), "first")

	out, err := runCommand(context.Background(), "sh", "-c", "printf '{}'")
	require.NoError(t, err)
	require.Equal(t, "{}", string(out))
}
