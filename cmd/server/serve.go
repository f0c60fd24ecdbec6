package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/tasknest/internal/db"
	"github.com/tasknest/internal/handler"
	appLog "github.com/tasknest/internal/log"
	"github.com/tasknest/internal/notify"
	"github.com/tasknest/internal/poll"
	"github.com/tasknest/internal/router"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the notification scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(*configPath)
			if err != nil {
				return err
			}
			cfg := rt.cfg

			created, err := db.EnsureUser(rt.db, cfg.AdminUserName, cfg.AdminPassword)
			if err != nil {
				return err
			}
			if created {
				appLog.Info("admin user created", "username", cfg.AdminUserName)
			}

			gin.SetMode(cfg.GinMode)
			api := handler.NewAPI(rt.db, handler.Options{
				Location:            rt.loc,
				LookaheadDays:       cfg.LookaheadDays,
				NotifyDays:          cfg.Notify.Days,
				MaterializeDueToday: cfg.Notify.MaterializeDueToday,
				Notifiers:           rt.notifiers(),
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := api.Calendar().Refresh(ctx); err != nil {
				appLog.Warn("initial calendar pass failed", "err", err)
			}

			if cfg.Notify.Cron != "" {
				scheduler, err := notify.NewScheduler(api.Feed(), cfg.Notify.Cron, rt.loc, poll.DefaultPolicy)
				if err != nil {
					return err
				}
				scheduler.Start()
				defer scheduler.Stop()
				appLog.Info("notification scheduler started", "cron", cfg.Notify.Cron)
			}

			srv := &http.Server{
				Addr:    cfg.ListenAddr,
				Handler: router.SetupRouter(api, cfg.SessionSecret),
			}
			errCh := make(chan error, 1)
			go func() {
				appLog.Info("http server listening", "addr", cfg.ListenAddr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			appLog.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
