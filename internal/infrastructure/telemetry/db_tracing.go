package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBTracingConfig controls the otelgorm plugin and the slow statement watcher
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL keeps bound values in span statements. Off by default so
	// amounts and party names stay out of traces.
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBName          string
}

// DefaultDBTracingConfig returns the settings used when tracing is turned on without overrides
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBName:          "backoffice",
	}
}

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm on db and brackets every statement
// with the slow statement watcher. Disabled configs leave db untouched.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("register otelgorm: %w", err)
	}

	w := &slowQueryWatcher{threshold: cfg.SlowQueryThresh, logger: logger.Named("db")}
	if err := w.register(db); err != nil {
		return fmt.Errorf("register slow query watcher: %w", err)
	}

	logger.Info("Database tracing enabled",
		zap.String("db_name", cfg.DBName),
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

type slowQueryWatcher struct {
	threshold time.Duration
	logger    *zap.Logger
}

// register brackets each statement kind with start and finish
func (w *slowQueryWatcher) register(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("backoffice:start_create", w.start),
		cb.Create().After("gorm:create").Register("backoffice:slow_create", w.finish),
		cb.Query().Before("gorm:query").Register("backoffice:start_query", w.start),
		cb.Query().After("gorm:query").Register("backoffice:slow_query", w.finish),
		cb.Update().Before("gorm:update").Register("backoffice:start_update", w.start),
		cb.Update().After("gorm:update").Register("backoffice:slow_update", w.finish),
		cb.Delete().Before("gorm:delete").Register("backoffice:start_delete", w.start),
		cb.Delete().After("gorm:delete").Register("backoffice:slow_delete", w.finish),
		cb.Row().Before("gorm:row").Register("backoffice:start_row", w.start),
		cb.Row().After("gorm:row").Register("backoffice:slow_row", w.finish),
		cb.Raw().Before("gorm:raw").Register("backoffice:start_raw", w.start),
		cb.Raw().After("gorm:raw").Register("backoffice:slow_raw", w.finish),
	)
}

func (w *slowQueryWatcher) start(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

// finish warns about statements slower than the threshold and flags their span
func (w *slowQueryWatcher) finish(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil || w.threshold <= 0 {
		return
	}
	started, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(started)
	if elapsed < w.threshold {
		return
	}

	w.logger.Warn("Slow query",
		zap.String("table", db.Statement.Table),
		zap.String("agency_id", tenantOf(db)),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", db.Statement.RowsAffected),
		zap.Bool("failed", db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound)),
	)
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}

// tenantOf returns the tenant_id a statement is scoped to, or "" when the
// statement has no tenant_id condition.
func tenantOf(db *gorm.DB) string {
	where, ok := db.Statement.Clauses["WHERE"].Expression.(clause.Where)
	if !ok {
		return ""
	}
	for _, expr := range where.Exprs {
		e, ok := expr.(clause.Expr)
		if !ok || len(e.Vars) == 0 || !strings.HasPrefix(e.SQL, "tenant_id") {
			continue
		}
		switch v := e.Vars[0].(type) {
		case fmt.Stringer:
			return v.String()
		case string:
			return v
		}
	}
	return ""
}
