package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// GormLogger is a gormlogger.Interface writing to zap. Request correlation
// fields found on the context are attached to every line.
type GormLogger struct {
	logger         *zap.Logger
	logLevel       gormlogger.LogLevel
	slowThreshold  time.Duration
	ignoreNotFound bool
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the duration above which statements are logged as
// slow. Zero turns slow statement logging off.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slowThreshold = threshold }
}

// WithIgnoreRecordNotFoundError controls whether gorm.ErrRecordNotFound is
// logged as an SQL error.
func WithIgnoreRecordNotFoundError(ignore bool) GormLoggerOption {
	return func(l *GormLogger) { l.ignoreNotFound = ignore }
}

// NewGormLogger names base "gorm" and applies opts
func NewGormLogger(base *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	if base == nil {
		base = zap.NewNop()
	}
	l := &GormLogger{
		logger:         base.Named("gorm"),
		logLevel:       level,
		slowThreshold:  defaultSlowQuery,
		ignoreNotFound: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, min gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.logLevel < min {
		return
	}
	Enrich(ctx, l.logger).Sugar().Logf(lvl, msg, data...)
}

// Trace logs one executed statement: failures at error, slow statements at
// warn, everything else at debug when the GORM level is Info. fc is only
// called when a line is written.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)

	var (
		lvl    zapcore.Level
		msg    string
		fields []zap.Field
	)
	switch {
	case err != nil:
		if l.logLevel < gormlogger.Error || (l.ignoreNotFound && errors.Is(err, gormlogger.ErrRecordNotFound)) {
			return
		}
		lvl, msg, fields = zapcore.ErrorLevel, "SQL Error", []zap.Field{zap.Error(err)}
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		if l.logLevel < gormlogger.Warn {
			return
		}
		lvl, msg, fields = zapcore.WarnLevel, "Slow SQL", []zap.Field{zap.Duration("threshold", l.slowThreshold)}
	default:
		if l.logLevel < gormlogger.Info {
			return
		}
		lvl, msg = zapcore.DebugLevel, "SQL Query"
	}

	sql, rows := fc()
	fields = append(fields,
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)
	Enrich(ctx, l.logger).Log(lvl, msg, fields...)
}

// MapGormLogLevel converts the application log level into a GORM level.
// Statements are only logged at debug.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "debug":
		return gormlogger.Info
	}
	return gormlogger.Warn
}

var _ gormlogger.Interface = (*GormLogger)(nil)
