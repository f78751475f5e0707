package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowSQL = 200 * time.Millisecond

// SQLLoggerConfig tunes the GORM logger. Bound values are left out of
// logged statements unless FullSQL is set, since import details hold
// storefront data.
type SQLLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
	FullSQL       bool
}

// SQLLogger writes GORM statements to zap with the correlation of the
// statement's context. Lookups that find no row are not errors.
type SQLLogger struct {
	log *zap.Logger
	cfg SQLLoggerConfig
}

var _ gormlogger.Interface = (*SQLLogger)(nil)

// NewSQLLogger creates the logger under the "gorm" name
func NewSQLLogger(log *zap.Logger, cfg SQLLoggerConfig) *SQLLogger {
	if cfg.SlowThreshold == 0 {
		cfg.SlowThreshold = defaultSlowSQL
	}
	return &SQLLogger{log: log.Named("gorm"), cfg: cfg}
}

func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.cfg.Level = level
	return &cp
}

func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Info {
		WithLogger(ctx, l.log).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Warn {
		WithLogger(ctx, l.log).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Error {
		WithLogger(ctx, l.log).Error(fmt.Sprintf(msg, data...))
	}
}

// ParamsFilter is called by gorm when rendering the statement given to Trace
func (l *SQLLogger) ParamsFilter(_ context.Context, sql string, params ...any) (string, []any) {
	if !l.cfg.FullSQL {
		return sql, nil
	}
	return sql, params
}

func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	level := l.cfg.Level
	if level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	slow := elapsed > l.cfg.SlowThreshold

	var msg string
	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && level >= gormlogger.Error:
		msg = "SQL failed"
	case slow && level >= gormlogger.Warn:
		msg = "Slow SQL"
	case level >= gormlogger.Info:
		msg = "SQL"
	default:
		return
	}

	sql, rows := fc()
	log := WithLogger(ctx, l.log).With(
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	)
	switch msg {
	case "SQL failed":
		log.Error(msg, zap.Error(err))
	case "Slow SQL":
		log.Warn(msg, zap.Duration("threshold", l.cfg.SlowThreshold))
	default:
		log.Debug(msg)
	}
}

// GormLevel maps the log.level setting to a GORM level: statements are
// traced at debug and info, failures and slow queries otherwise
func GormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug", "info":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	case "silent":
		return gormlogger.Silent
	default:
		return gormlogger.Warn
	}
}
