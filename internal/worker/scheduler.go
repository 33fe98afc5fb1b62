package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jimdaga/friend-frenzy/internal/config"
)

// NewCloseExpiredPollsTask builds the periodic sweep task.
func NewCloseExpiredPollsTask() *asynq.Task {
	return asynq.NewTask(
		TaskCloseExpiredPolls,
		nil,
		asynq.MaxRetry(1),
		asynq.Timeout(time.Minute),
		asynq.Retention(time.Hour),
		asynq.Unique(time.Minute), // Prevent duplicate if scheduler runs twice
	)
}

// StartScheduler creates and starts an Asynq Scheduler for periodic tasks.
// Returns a stop function for graceful shutdown.
func StartScheduler(cfg *config.Config, logger *slog.Logger) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	location, err := time.LoadLocation(cfg.PollSweepTimezone)
	if err != nil {
		logger.Warn("Invalid timezone, using UTC", "timezone", cfg.PollSweepTimezone, "error", err)
		location = time.UTC
	}

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: location,
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	entryID, err := scheduler.Register(cfg.PollSweepSchedule, NewCloseExpiredPollsTask())
	if err != nil {
		return nil, fmt.Errorf("failed to register poll sweep schedule: %w", err)
	}

	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info(
		"Scheduler started",
		"schedule", cfg.PollSweepSchedule,
		"timezone", location.String(),
		"entry_id", entryID,
	)

	return func() { scheduler.Shutdown() }, nil
}
