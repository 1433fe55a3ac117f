package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"boxoffice/pkg/logger"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// queryLogger sends gorm's statement log through the application logger as
// structured records. Record-not-found is the normal miss path for ticket
// lookups and is never reported.
type queryLogger struct {
	log   *logger.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func newGormLogger(log *logger.Logger, level gormlogger.LogLevel, slow time.Duration) gormlogger.Interface {
	return &queryLogger{log: log, level: level, slow: slow}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *q
	clone.level = level
	return &clone
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if q.level >= gormlogger.Info {
		q.log.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if q.level >= gormlogger.Warn {
		q.log.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if q.level >= gormlogger.Error {
		q.log.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	attrs := func() []any {
		sql, rows := fc()
		return []any{
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Float64("elapsed_ms", float64(elapsed.Microseconds())/1000),
		}
	}

	switch {
	case err != nil && q.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		q.log.ErrorContext(ctx, "Query failed", append(attrs(), slog.Any("error", err))...)
	case q.slow > 0 && elapsed > q.slow && q.level >= gormlogger.Warn:
		q.log.WarnContext(ctx, "Slow query", append(attrs(), slog.Duration("threshold", q.slow))...)
	case q.level == gormlogger.Info:
		q.log.DebugContext(ctx, "Query", attrs()...)
	}
}
