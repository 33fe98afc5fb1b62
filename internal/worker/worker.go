// Package worker runs the asynq server that processes queued insights
// generation and the periodic poll expiry sweep.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jimdaga/friend-frenzy/internal/config"
	"github.com/jimdaga/friend-frenzy/internal/insights"
)

// Expirer closes polls past their expiry.
type Expirer interface {
	CloseExpired(ctx context.Context, now time.Time) (int64, error)
}

// Deps are the services task handlers call.
type Deps struct {
	Runner  insights.Runner
	Expirer Expirer
	Logger  *slog.Logger
}

// asynqLoggerAdapter wraps slog.Logger to implement asynq.Logger interface
type asynqLoggerAdapter struct {
	logger *slog.Logger
}

func (a *asynqLoggerAdapter) Debug(args ...interface{}) {
	a.logger.Debug(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Info(args ...interface{}) {
	a.logger.Info(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Warn(args ...interface{}) {
	a.logger.Warn(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Error(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Fatal(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}

// Run starts the Asynq worker server and blocks until shutdown signal.
// Use this for standalone worker mode.
func Run(cfg *config.Config, deps Deps) error {
	srv, mux, err := newServer(cfg, deps)
	if err != nil {
		return err
	}
	// Run blocks and handles its own signal interception
	return srv.Run(mux)
}

// Start starts the Asynq worker in non-blocking mode and returns a stop function.
// Use this for embedded mode so the caller can coordinate shutdown.
func Start(cfg *config.Config, deps Deps) (stop func(), err error) {
	srv, mux, err := newServer(cfg, deps)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

func newServer(cfg *config.Config, deps Deps) (*asynq.Server, *asynq.ServeMux, error) {
	if deps.Runner == nil || deps.Expirer == nil {
		return nil, nil, fmt.Errorf("worker requires an insights runner and a poll expirer")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     concurrency,
			ShutdownTimeout: cfg.ShutdownGracePeriod,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	mux := newMux(logger, deps, time.Now)

	logger.Info("Worker starting", "concurrency", concurrency, "redis", cfg.RedisURL)
	return srv, mux, nil
}

func newMux(logger *slog.Logger, deps Deps, now func() time.Time) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskGenerateInsights, handleGenerateInsights(logger, deps.Runner))
	mux.HandleFunc(TaskCloseExpiredPolls, handleCloseExpiredPolls(logger, deps.Expirer, now))
	return mux
}

// handleGenerateInsights runs the generation sequence for a queued poll. The
// outcome, failed or not, is already persisted by the runner.
func handleGenerateInsights(logger *slog.Logger, runner insights.Runner) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload insightsPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.PollID == "" {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		logger.Info("Processing insights:generate task", "poll_id", payload.PollID)

		start := time.Now()
		rec := runner.Generate(ctx, payload.PollID)
		if rec.Status == insights.StatusFailed {
			return fmt.Errorf("insights generation failed: %s: %w", rec.Error, asynq.SkipRetry)
		}

		logger.Info(
			"Insights generation completed",
			"poll_id", payload.PollID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}
}

// handleCloseExpiredPolls closes every active poll past its expiry.
func handleCloseExpiredPolls(logger *slog.Logger, expirer Expirer, now func() time.Time) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		closed, err := expirer.CloseExpired(ctx, now())
		if err != nil {
			return err
		}
		if closed > 0 {
			logger.Info("Closed expired polls", "count", closed)
		}
		return nil
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		if retried >= maxRetry {
			logger.Error(
				"Task archived (no retries left)",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
