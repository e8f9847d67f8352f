package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikiest/github-dashboard/internal/analytics"
	"github.com/mikiest/github-dashboard/internal/handlers"
	"github.com/mikiest/github-dashboard/internal/logger"
	"github.com/mikiest/github-dashboard/internal/rdb"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer logger.Sync()
		if servePort != "" {
			a.cfg.Port = servePort
		}

		deps := routerDeps{allowedOrigins: a.cfg.AllowedOrigins, log: a.log}

		if a.cfg.RedisURL != "" {
			limiter, err := rdb.New(a.cfg.RedisURL, a.log.Named("ratelimit"))
			if err != nil {
				return err
			}
			defer limiter.Close()
			deps.limiter = limiter.RateLimit(a.cfg.RateLimitPerMinute, time.Minute)
		} else {
			a.log.Info("REDIS_URL not set, request rate limiting disabled")
		}

		ph := analytics.New(a.cfg.PostHogAPIKey, a.log.Named("analytics"))
		defer ph.Close()
		deps.analytics = ph

		h := handlers.New(a.gh, a.svc, a.log.Named("http"))
		srv := &http.Server{
			Addr:              ":" + a.cfg.Port,
			Handler:           newRouter(h, deps),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		go func() {
			<-ctx.Done()
			a.log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.Warn("shutdown", zap.Error(err))
			}
		}()

		a.log.Info("dashboard API listening", zap.String("addr", fmt.Sprintf("http://localhost:%s", a.cfg.Port)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
