package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/AdamBeresnev/box-league-engine/internal/archive"
	"github.com/AdamBeresnev/box-league-engine/internal/config"
	"github.com/AdamBeresnev/box-league-engine/internal/db"
	"github.com/AdamBeresnev/box-league-engine/internal/service"
	"github.com/AdamBeresnev/box-league-engine/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

const connectTimeout = 5 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "box-league",
		Short: "Box league and tournament progression engine",
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func newLogger(cfg *config.Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	return logger
}

func connect(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	return db.InitDB(ctx, cfg.DBDriver, cfg.DatabaseURL, connectTimeout)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return err
	}
	logger := newLogger(cfg)

	database, err := connect(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database connection", "error", err)
		}
	}()

	if err := db.RunMigrations(database.DB, cfg.DBDriver); err != nil {
		logger.Error("failed to run migrations", "error", err)
		return err
	}

	competitionStore := store.NewCompetitionStore(database)
	opts := []service.Option{
		service.WithDefaults(cfg.Defaults),
		service.WithArchiveTimeout(cfg.OperationTimeout),
	}
	if cfg.Archive.Enabled() {
		archiver, err := archive.NewR2Archiver(ctx, archive.Config{
			AccountID:       cfg.Archive.AccountID,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
			Bucket:          cfg.Archive.Bucket,
			Prefix:          cfg.Archive.Prefix,
		})
		if err != nil {
			logger.Error("failed to initialize archive", "error", err)
			return err
		}
		opts = append(opts, service.WithArchiver(archiver))
		logger.Info("archive enabled", "bucket", cfg.Archive.Bucket)
	}

	app := &application{
		competitions: service.NewCompetitionService(competitionStore, logger, opts...),
		matches:      service.NewMatchService(competitionStore, logger),
		standings:    service.NewStandingsService(competitionStore),
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      newRouter(app, cfg, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.OperationTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return err
	}
	return nil
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "up",
		Short:        "Apply every pending migration",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(cfg *config.Config, database *sqlx.DB) error {
				return db.RunMigrations(database.DB, cfg.DBDriver)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:          "down [steps]",
		Short:        "Roll back migrations, all of them when steps is omitted",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 0
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive number, got %q", args[0])
				}
				steps = n
			}
			return withDatabase(cmd.Context(), func(cfg *config.Config, database *sqlx.DB) error {
				return db.RollbackMigrations(database.DB, cfg.DBDriver, steps)
			})
		},
	})

	return cmd
}

func withDatabase(ctx context.Context, fn func(cfg *config.Config, database *sqlx.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	database, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := fn(cfg, database); err != nil {
		return err
	}
	logger.Info("migrations finished", "driver", cfg.DBDriver)
	return nil
}
