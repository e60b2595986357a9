package logger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm's SQL logging through the context logger so query
// lines carry request_id and job_id like the rest of the application.
type GormLogger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger creates a gorm logger. level is one of silent, error, warn, info.
func NewGormLogger(level string, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{level: parseGormLevel(level), slowThreshold: slowThreshold}
}

func parseGormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// LogMode implements gormlogger.Interface.
func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

// Info implements gormlogger.Interface.
func (g *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		FromContext(ctx).WithField(FieldComponent, "db").Infof(msg, args...)
	}
}

// Warn implements gormlogger.Interface.
func (g *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		FromContext(ctx).WithField(FieldComponent, "db").Warnf(msg, args...)
	}
}

// Error implements gormlogger.Interface.
func (g *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		FromContext(ctx).WithField(FieldComponent, "db").Errorf(msg, args...)
	}
}

// Trace implements gormlogger.Interface. Not-found and duplicate-key errors
// are expected control flow and are logged at debug level only.
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	entry := FromContext(ctx).WithFields(Fields{
		FieldComponent:  "db",
		FieldDurationMs: elapsed.Milliseconds(),
		FieldCount:      rows,
	})

	switch {
	case err != nil && (errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey)):
		entry.Debugf("sql: %s (%v)", sql, err)
	case err != nil && g.level >= gormlogger.Error:
		entry.WithError(err).Errorf("sql failed: %s", sql)
	case g.slowThreshold > 0 && elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		entry.Warnf("slow sql (>%s): %s", g.slowThreshold, sql)
	case g.level >= gormlogger.Info:
		entry.Debugf("sql: %s", sql)
	}
}
