package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// queryLogger adapts GORM's logger interface to slog. Failed queries log at
// error, slow ones at warn, the rest at debug. Record-not-found is not an
// error for this app.
type queryLogger struct {
	logger *slog.Logger
	slow   time.Duration
	level  gormlogger.LogLevel
}

func newQueryLogger(l *slog.Logger, slow time.Duration) *queryLogger {
	return &queryLogger{logger: l, slow: slow, level: gormlogger.Info}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *q
	c.level = level
	return &c
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if q.level >= gormlogger.Info {
		q.logger.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if q.level >= gormlogger.Warn {
		q.logger.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if q.level >= gormlogger.Error {
		q.logger.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && q.level >= gormlogger.Error:
		sql, rows := fc()
		q.logger.ErrorContext(ctx, "Database query failed",
			"error", err.Error(), "sql", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	case q.slow > 0 && elapsed > q.slow && q.level >= gormlogger.Warn:
		sql, rows := fc()
		q.logger.WarnContext(ctx, "Slow database query",
			"sql", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	case q.level >= gormlogger.Info && q.logger.Enabled(ctx, slog.LevelDebug):
		sql, rows := fc()
		q.logger.DebugContext(ctx, "Database query",
			"sql", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	}
}
