package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/backyonatan-alt/petitionwatch/internal/cache"
	"github.com/backyonatan-alt/petitionwatch/internal/pipeline"
	"github.com/backyonatan-alt/petitionwatch/internal/scheduler"
	"github.com/backyonatan-alt/petitionwatch/internal/server"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Runs a cycle now and on the configured schedule, and serves the HTTP API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.watch(cmd.Context())
	},
}

func (a *app) watch(ctx context.Context) error {
	reports := cache.NewValue[pipeline.Report]()
	sched, err := scheduler.New(a.newPipeline(reports), a.cfg.Watch.Schedule)
	if err != nil {
		return err
	}

	srv := server.New(a.cfg.Server, a.cfg.Watch.SnapshotLimit, a.store, reports)
	httpServer := &http.Server{
		Addr:         ":" + a.cfg.Server.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Start(ctx)
	})
	g.Go(func() error {
		slog.Info("server starting", "port", a.cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		return nil
	})

	err = g.Wait()
	slog.Info("shutdown complete")
	return err
}
