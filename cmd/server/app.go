package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jimdaga/friend-frenzy/internal/config"
	"github.com/jimdaga/friend-frenzy/internal/database"
	"github.com/jimdaga/friend-frenzy/internal/insights"
	"github.com/jimdaga/friend-frenzy/internal/logger"
	"github.com/jimdaga/friend-frenzy/internal/openrouter"
	"github.com/jimdaga/friend-frenzy/internal/polls"
	"github.com/jimdaga/friend-frenzy/internal/questions"
	"github.com/jimdaga/friend-frenzy/internal/reportstore"
	"github.com/jimdaga/friend-frenzy/internal/worker"
	"gorm.io/gorm"
)

// app holds the services shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
	bank   *questions.Bank
	repo   *polls.GormRepository
	orch   *insights.Orchestrator

	// Set according to the insights mode.
	background *insights.BackgroundDispatcher
	queue      *worker.Queue

	closers []func() error
}

// loadApp reads configuration, installs the default logger and connects
// the database; mode overrides INSIGHTS_MODE when non-empty.
func loadApp(mode string) (*app, error) {
	cfg := config.Load()
	if mode != "" {
		cfg.InsightsMode = mode
	}

	a := &app{
		cfg:    cfg,
		logger: logger.Setup(cfg.LogLevel, cfg.LogFormat),
		bank:   questions.Default(),
	}

	db, err := database.Open(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		SlowQuery:       cfg.DBSlowQuery,
		Logger:          a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, func() error { return database.Close(db) })

	return a, nil
}

// wireInsights builds the report store, the generator and the orchestrator
// with the dispatcher of the configured mode.
func (a *app) wireInsights() error {
	cfg := a.cfg
	a.repo = polls.NewGormRepository(a.db, a.bank)

	store, closeStore, err := reportstore.New(cfg, a.db)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closeStore)

	client := openrouter.NewClient(
		cfg.OpenRouterBaseURL,
		cfg.OpenRouterAPIKey,
		openrouter.WithAttribution(cfg.OpenRouterReferer, cfg.OpenRouterTitle),
		openrouter.WithStubMode(cfg.OpenRouterStub),
	)
	// An unconfigured client must stay a nil interface so the generator
	// goes straight to the fallback report.
	var completer insights.Completer
	if client.Configured() {
		completer = client
	}

	gen := insights.NewGenerator(completer, insights.GeneratorConfig{
		Models:           cfg.InsightsModels,
		CandidateTimeout: cfg.InsightsCandidateTimeout,
		Temperature:      cfg.InsightsTemperature,
		MaxTokens:        cfg.InsightsMaxTokens,
	}, a.logger)

	a.orch = insights.NewOrchestrator(store, a.repo, gen, insights.Options{
		StaleAfter: cfg.InsightsStaleAfter,
		Logger:     a.logger,
	})

	switch cfg.InsightsMode {
	case config.ModeInline:
	case config.ModeBackground:
		a.background = insights.NewBackgroundDispatcher(a.orch, cfg.InsightsGenerateTimeout, a.logger)
		a.orch.UseDispatcher(a.background)
	case config.ModeQueue:
		q, err := worker.NewQueue(cfg.RedisURL)
		if err != nil {
			return err
		}
		a.queue = q
		a.closers = append(a.closers, q.Close)
		a.orch.UseDispatcher(q)
	default:
		return fmt.Errorf("unknown insights mode %q", cfg.InsightsMode)
	}

	a.logger.Info("Insights configured",
		"mode", cfg.InsightsMode,
		"store", cfg.ReportStore,
		"models", len(cfg.InsightsModels),
		"completer", completer != nil,
	)
	return nil
}

// workerDeps are the task handler dependencies.
func (a *app) workerDeps() worker.Deps {
	return worker.Deps{Runner: a.orch, Expirer: a.repo, Logger: a.logger}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
