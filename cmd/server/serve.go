package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jimdaga/friend-frenzy/internal/auth"
	"github.com/jimdaga/friend-frenzy/internal/database"
	"github.com/jimdaga/friend-frenzy/internal/health"
	"github.com/jimdaga/friend-frenzy/internal/polls"
	"github.com/jimdaga/friend-frenzy/internal/server"
	"github.com/jimdaga/friend-frenzy/internal/worker"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp("")
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(a, skipMigrate)
		},
	}

	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not apply pending migrations on startup")
	return cmd
}

func serve(a *app, skipMigrate bool) error {
	cfg, logger := a.cfg, a.logger

	if !skipMigrate {
		if err := database.RunMigrations(a.db); err != nil {
			return err
		}
	}
	if err := a.wireInsights(); err != nil {
		return err
	}

	if cfg.EmbeddedWorker {
		stopWorker, err := worker.Start(cfg, a.workerDeps())
		if err != nil {
			return err
		}
		defer stopWorker()

		stopScheduler, err := worker.StartScheduler(cfg, logger)
		if err != nil {
			return err
		}
		defer stopScheduler()
	}

	authEnabled := auth.InitProviders(cfg)

	router := server.NewRouter(server.Deps{
		Config: cfg,
		Logger: logger,
		Polls: polls.NewHandler(a.repo, polls.Options{
			Lifetime:     cfg.PollLifetime,
			CreateLimit:  cfg.PollCreateLimit,
			CreateWindow: cfg.PollCreateWindow,
			Logger:       logger,
		}),
		Insights:    a.orch,
		Bank:        a.bank,
		Linker:      a.repo,
		AuthEnabled: authEnabled,
		ReadyChecks: map[string]health.Checker{
			"database": func(ctx context.Context) error { return database.Ping(ctx, a.db) },
		},
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server", "grace_period", cfg.ShutdownGracePeriod.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err.Error())
	}

	// Generations started by requests keep running after their response.
	if a.background != nil {
		if err := a.background.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Background insights still running at shutdown", "error", err.Error())
		}
	}

	logger.Info("Server stopped")
	return nil
}
