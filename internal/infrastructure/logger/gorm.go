package logger

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// maxStatementLen caps logged SQL; multi-row outbox inserts get long
const maxStatementLen = 2048

// SQLLogConfig selects what the ledger's SQL logger writes
type SQLLogConfig struct {
	Level         string        // silent, error, warn, info or debug
	SlowThreshold time.Duration // 0 turns slow query warnings off
}

// SQLLogger writes GORM's statements through zap, tagged with the request,
// back-office user and trace they ran for. Missing rows are routine 404s
// and never logged as errors.
type SQLLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

var _ gormlogger.Interface = (*SQLLogger)(nil)

func NewSQLLogger(base *zap.Logger, cfg SQLLogConfig) *SQLLogger {
	return &SQLLogger{
		log:   base.Named("sql"),
		level: ParseSQLLevel(cfg.Level),
		slow:  cfg.SlowThreshold,
	}
}

// ParseSQLLevel maps the application log level onto GORM's. Only debug and
// info show every statement.
func ParseSQLLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.log.With(requestFields(ctx)...).Sugar().Infof(msg, data...)
	}
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.log.With(requestFields(ctx)...).Sugar().Warnf(msg, data...)
	}
}

func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.log.With(requestFields(ctx)...).Sugar().Errorf(msg, data...)
	}
}

// Trace logs one finished statement: failures at error, slow statements at
// warn, everything else at debug when the level is info
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	failed := err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound)
	elapsed := time.Since(begin)
	slow := l.slow > 0 && elapsed > l.slow

	var level zapcore.Level
	switch {
	case failed && l.level >= gormlogger.Error:
		level = zapcore.ErrorLevel
	case slow && l.level >= gormlogger.Warn:
		level = zapcore.WarnLevel
	case !failed && l.level >= gormlogger.Info:
		level = zapcore.DebugLevel
	default:
		return
	}

	stmt, rows := fc()
	if len(stmt) > maxStatementLen {
		stmt = stmt[:maxStatementLen] + "..."
	}
	fields := append([]zap.Field{
		zap.String("sql", stmt),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}, requestFields(ctx)...)

	switch level {
	case zapcore.ErrorLevel:
		l.log.Error("query failed", append(fields, zap.Error(err))...)
	case zapcore.WarnLevel:
		l.log.Warn("slow query", append(fields, zap.Duration("threshold", l.slow))...)
	default:
		l.log.Debug("query", fields...)
	}
}

// requestFields identifies the request a statement ran for
func requestFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if subject := GetSubject(ctx); subject != "" {
		fields = append(fields, zap.String("subject", subject))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	return fields
}
