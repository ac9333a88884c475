package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	appinvoicing "github.com/erp/backoffice/internal/application/invoicing"
	appledger "github.com/erp/backoffice/internal/application/ledger"
	"github.com/erp/backoffice/internal/infrastructure/audit"
	"github.com/erp/backoffice/internal/infrastructure/cache"
	"github.com/erp/backoffice/internal/infrastructure/config"
	"github.com/erp/backoffice/internal/infrastructure/persistence"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const auditDrainTimeout = 5 * time.Second

// services holds the wired application layer for one command run
type services struct {
	db           *persistence.Database
	orchestrator *appinvoicing.PaymentOrchestrator
	reconciler   *appinvoicing.ReconcileService
	ledger       *appledger.Service

	redis *redis.Client
	audit *audit.AsyncSink
	log   *zap.Logger
}

func (o *rootOptions) openServices(ctx context.Context) (*services, error) {
	cfg := o.cfg

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithQueryLogger(o.log, queryLogLevel(cfg.Log.Level)),
		persistence.WithTracing(dbTracingConfig(cfg)),
	)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	s := &services{db: db, log: o.log}

	clock := time.Now
	scope := persistence.NewGormTransactionScope(db.DB, persistence.WithTransactionClock(clock))
	s.audit = audit.NewAsyncSink(audit.NewLogSink(o.log), cfg.Orchestrator.AuditBuffer, o.log)

	orchestratorOpts := []appinvoicing.Option{
		appinvoicing.WithLogger(o.log),
		appinvoicing.WithAudit(s.audit),
		appinvoicing.WithClock(clock),
		appinvoicing.WithConfig(appinvoicing.Config{
			SequencePrefix:      cfg.Sequence.Prefix,
			MaxSequenceAttempts: cfg.Sequence.MaxAttempts,
			MaxConflictRetries:  cfg.Orchestrator.MaxConflictRetries,
		}),
	}

	if needsRedis(cfg) {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		s.redis = client
	}
	if cfg.Sequence.Allocator == config.AllocatorRedis {
		invoices := persistence.NewGormInvoiceRepository(db.DB)
		orchestratorOpts = append(orchestratorOpts, appinvoicing.WithSequenceAllocator(
			cache.NewRedisSequenceAllocator(s.redis, invoices, cfg.Sequence.RedisPrefix, o.log)))
	}
	if cfg.Orchestrator.Locker == config.LockerRedis {
		orchestratorOpts = append(orchestratorOpts, appinvoicing.WithLocker(
			cache.NewRedisInvoiceLocker(s.redis, cfg.Orchestrator.LockTTL, cfg.Orchestrator.LockTimeout, o.log)))
	}

	s.orchestrator = appinvoicing.NewPaymentOrchestrator(scope, orchestratorOpts...)
	s.reconciler = appinvoicing.NewReconcileService(scope,
		appinvoicing.WithReconcileLogger(o.log),
		appinvoicing.WithParallelism(cfg.Reconcile.Parallelism),
	)
	s.ledger = appledger.NewService(persistence.NewGormOperationRepository(db.DB), o.log)

	o.log.Debug("Services wired",
		zap.String("sequence_allocator", cfg.Sequence.Allocator),
		zap.String("invoice_locker", cfg.Orchestrator.Locker),
	)
	return s, nil
}

// Close drains pending audit entries before releasing connections
func (s *services) Close(ctx context.Context) error {
	var errs []error
	if s.audit != nil {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditDrainTimeout)
		if err := s.audit.Close(drainCtx); err != nil {
			errs = append(errs, fmt.Errorf("drain audit: %w", err))
		}
		cancel()
		if dropped := s.audit.Dropped(); dropped > 0 {
			s.log.Warn("Audit entries were dropped", zap.Int64("dropped_total", dropped))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if s.db != nil {
		if stats, err := s.db.Stats(); err == nil {
			s.log.Debug("Database pool",
				zap.Int("open", stats.OpenConnections),
				zap.Int("in_use", stats.InUse),
				zap.Int64("wait_count", stats.WaitCount),
				zap.Duration("wait_duration", stats.WaitDuration),
			)
		}
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Sequence.Allocator == config.AllocatorRedis || cfg.Orchestrator.Locker == config.LockerRedis
}

// queryLogLevel keeps SQL statements out of the log unless debugging
func queryLogLevel(level string) string {
	if level == "debug" {
		return "info"
	}
	return "warn"
}

func dbTracingConfig(cfg *config.Config) telemetry.DBTracingConfig {
	tc := telemetry.DefaultDBTracingConfig()
	tc.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	tc.LogFullSQL = cfg.Log.Level == "debug"
	if cfg.Database.DBName != "" {
		tc.DBName = cfg.Database.DBName
	}
	return tc
}
