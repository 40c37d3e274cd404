package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/backyonatan-alt/petitionwatch/internal/cache"
	"github.com/backyonatan-alt/petitionwatch/internal/config"
	"github.com/backyonatan-alt/petitionwatch/internal/fetcher"
	"github.com/backyonatan-alt/petitionwatch/internal/pipeline"
	"github.com/backyonatan-alt/petitionwatch/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "petitionwatch",
	Short: "Harvests signature counts of open parliamentary petitions.",
	Long: `petitionwatch walks the open-petitions listing, imports every petition whose
signature count changed since the last run, and records per-country,
per-region, per-constituency and per-party snapshots.

Run without a subcommand to perform a single cycle.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		_, err = a.newPipeline(nil).Run(cmd.Context())
		return err
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, seedCmd, watchCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates the database schema if it does not exist.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		slog.Info("schema is up to date", "driver", a.cfg.Database.Driver)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Imports parties and constituencies if none are stored yet.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		seeded, err := a.newPipeline(nil).Seed(cmd.Context())
		if err != nil {
			return err
		}
		if !seeded {
			slog.Info("reference data already present, nothing to do")
		}
		return nil
	},
}

// app carries the dependencies shared by every subcommand.
type app struct {
	cfg    *config.Config
	store  *store.SQL
	source *fetcher.Fetcher
}

// setup loads config, configures logging, opens and migrates the database.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg.Log); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	src, err := fetcher.New(cfg.Source)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &app{cfg: cfg, store: st, source: src}, nil
}

func (a *app) newPipeline(reports *cache.Value[pipeline.Report]) *pipeline.Pipeline {
	return pipeline.New(a.store, a.source, reports, pipeline.Options{PageDelay: a.cfg.Source.PageDelay})
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}

func setupLogging(cfg config.LogConfig) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return fmt.Errorf("log.level %q: %w", cfg.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(os.Stdout, opts)
	case "text", "":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		return fmt.Errorf("log.format %q: must be text or json", cfg.Format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}
