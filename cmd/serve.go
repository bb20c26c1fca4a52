package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hire-matcher/internal/api"
	"github.com/spigell/hire-matcher/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Duration("auto-invite-interval", 0, "run the auto invite sweep over all jobs at this interval (0 disables)")
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := setup(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	d.logger.Info("starting the hire-matcher", zap.String("version", version))

	var limiter api.Limiter = api.NewMemoryLimiter()
	if rdb := d.connectRedis(d.config.Server.RedisURL, "rate limiter"); rdb != nil {
		limiter = api.NewRedisLimiter(rdb, d.logger.Named("ratelimit"))
	}

	if interval, _ := cmd.Flags().GetDuration("auto-invite-interval"); interval > 0 {
		go sweepLoop(ctx, d.svc, interval, d.logger)
	}

	return api.New(d.svc, limiter, d.config.Server, d.logger.Named("api")).Run(ctx)
}

// sweepLoop invites pending applications that reach the threshold.
func sweepLoop(ctx context.Context, svc *pipeline.Service, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.AutoInvite(ctx, 0); err != nil {
				logger.Warn("auto invite sweep failed", zap.Error(err))
			}
		}
	}
}
