package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Anuar-boop/teamrankrise/internal/app"
	"github.com/Anuar-boop/teamrankrise/internal/audit"
	"github.com/Anuar-boop/teamrankrise/internal/config"
	"github.com/Anuar-boop/teamrankrise/internal/pagespeed"
	"github.com/Anuar-boop/teamrankrise/internal/ratelimit"
	"github.com/Anuar-boop/teamrankrise/internal/scheduler"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what the commands need from the service container. Tests inject
// their own.
type App interface {
	Config() config.Config
	Logger() *zap.Logger
	Clock() audit.Clock
	Runner() (audit.Runner, error)
	Limiter(ctx context.Context) *ratelimit.SlidingWindow
	Scheduler(runner audit.Runner) *scheduler.Scheduler
	PageSpeedClient() *pagespeed.Client
	Close()
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(cfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:           "rankrise",
		Short:         "Website audit services for RankRise.",
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newProxyCmd())
	cmd.AddCommand(newAuditCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
