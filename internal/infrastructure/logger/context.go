package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	agencyKey  contextKey = "agency_id"
	actorKey   contextKey = "actor_id"
	commandKey contextKey = "command"
)

// WithAgency tags ctx with the agency being worked on. The returned logger
// carries the same field so service logs and SQL logs line up.
func WithAgency(ctx context.Context, log *zap.Logger, agencyID string) (context.Context, *zap.Logger) {
	return tag(ctx, log, agencyKey, agencyID)
}

// WithActor tags ctx with the user a change is recorded against
func WithActor(ctx context.Context, log *zap.Logger, actorID string) (context.Context, *zap.Logger) {
	return tag(ctx, log, actorKey, actorID)
}

// WithCommand tags ctx with the CLI command path, e.g. "backoffice reconcile"
func WithCommand(ctx context.Context, log *zap.Logger, command string) (context.Context, *zap.Logger) {
	return tag(ctx, log, commandKey, command)
}

func tag(ctx context.Context, log *zap.Logger, key contextKey, value string) (context.Context, *zap.Logger) {
	return context.WithValue(ctx, key, value), log.With(zap.String(string(key), value))
}

// GetAgencyID returns the agency ID set by WithAgency, or ""
func GetAgencyID(ctx context.Context) string {
	return value(ctx, agencyKey)
}

// GetActorID returns the actor ID set by WithActor, or ""
func GetActorID(ctx context.Context) string {
	return value(ctx, actorKey)
}

// GetCommand returns the command set by WithCommand, or ""
func GetCommand(ctx context.Context) string {
	return value(ctx, commandKey)
}

func value(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// contextFields rebuilds the tags of ctx as zap fields for loggers that
// were not derived through WithAgency and friends, like the GORM logger.
func contextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	for _, key := range []contextKey{agencyKey, actorKey, commandKey} {
		if v := value(ctx, key); v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	return fields
}

// WithTraceContext adds trace_id and span_id of the active span. Without a
// valid span the logger is returned unchanged.
func WithTraceContext(ctx context.Context, log *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return log
	}
	return log.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}
