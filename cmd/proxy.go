package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Anuar-boop/teamrankrise/internal/pagespeed"
)

func newProxyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proxy",
		Short: "Run the PageSpeed Insights proxy",
		Long: `Serves GET /api/pagespeed?url=... by calling PageSpeed Insights with the
server-held key (GOOGLE_API_KEY) and returning Google's reply unchanged.`,
		Args: cobra.NoArgs,
		RunE: runProxy,
	}
}

func runProxy(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	if err := cfg.ValidateProxy(); err != nil {
		return err
	}
	logger := appInstance.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proxy := pagespeed.NewProxy(appInstance.PageSpeedClient(), logger.Named("proxy"))
	logger.Info("pagespeed proxy configured",
		zap.String("endpoint", "/api/pagespeed"),
		zap.String("api_key", maskKey(cfg.PageSpeed.APIKey)),
		zap.Float64("requests_per_second", cfg.PageSpeed.RequestsPerSecond),
	)
	srv := newHTTPServer(cfg.Server.Port, proxy.Handler())
	return serveHTTP(ctx, srv, logger, cfg.Server.ShutdownGrace, nil)
}

// maskKey keeps only the first four characters of a secret.
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
