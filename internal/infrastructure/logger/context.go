package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	runIDKey
	requestIDKey
)

// WithContext attaches log to ctx
func WithContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger attached to ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return log
	}
	return zap.NewNop()
}

// WithRunID tags ctx and log with the ID of a reconciliation or import run
func WithRunID(ctx context.Context, log *zap.Logger, runID string) (context.Context, *zap.Logger) {
	log = log.With(zap.String("run_id", runID))
	return WithContext(context.WithValue(ctx, runIDKey, runID), log), log
}

// WithRequestID tags ctx and log with the ID of an inbound HTTP request
func WithRequestID(ctx context.Context, log *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	log = log.With(zap.String("request_id", requestID))
	return WithContext(context.WithValue(ctx, requestIDKey, requestID), log), log
}

// RunID returns the run ID carried by ctx
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// RequestID returns the request ID carried by ctx
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Scoped logs with the correlation of a context: its span, run and request
// IDs are added to every entry.
type Scoped struct {
	ctx    context.Context
	base   *zap.Logger
	// base came from the context and already carries run and request IDs
	tagged bool
}

// L scopes the logger attached to ctx
func L(ctx context.Context) *Scoped {
	return &Scoped{ctx: ctx, base: FromContext(ctx), tagged: true}
}

// WithLogger scopes a service's own logger to ctx
func WithLogger(ctx context.Context, log *zap.Logger) *Scoped {
	return &Scoped{ctx: ctx, base: log}
}

// With adds fields to every later entry
func (s *Scoped) With(fields ...zap.Field) *Scoped {
	if s.base == nil {
		return s
	}
	return &Scoped{ctx: s.ctx, base: s.base.With(fields...), tagged: s.tagged}
}

func (s *Scoped) Debug(msg string, fields ...zap.Field) { s.Zap().Debug(msg, fields...) }
func (s *Scoped) Info(msg string, fields ...zap.Field)  { s.Zap().Info(msg, fields...) }
func (s *Scoped) Warn(msg string, fields ...zap.Field)  { s.Zap().Warn(msg, fields...) }
func (s *Scoped) Error(msg string, fields ...zap.Field) { s.Zap().Error(msg, fields...) }

// Zap returns the correlated *zap.Logger
func (s *Scoped) Zap() *zap.Logger {
	log := s.base
	if log == nil {
		return zap.NewNop()
	}
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(s.ctx); sc.IsValid() {
		fields = append(fields,
			zap.Stringer("trace_id", sc.TraceID()),
			zap.Stringer("span_id", sc.SpanID()),
		)
	}
	if !s.tagged {
		if id := RunID(s.ctx); id != "" {
			fields = append(fields, zap.String("run_id", id))
		}
		if id := RequestID(s.ctx); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}
