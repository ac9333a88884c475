package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	appinvoicing "github.com/erp/backoffice/internal/application/invoicing"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultLockTTL     = 10 * time.Second
	defaultLockTimeout = 2 * time.Second
	lockRetryInterval  = 50 * time.Millisecond
	releaseTimeout     = time.Second
)

// RedisInvoiceLocker serializes orchestrator operations on one invoice across
// processes with a redislock lease.
type RedisInvoiceLocker struct {
	locker  *redislock.Client
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisInvoiceLocker creates a locker. Zero durations fall back to 10s TTL and 2s wait.
func NewRedisInvoiceLocker(client redis.UniversalClient, ttl, timeout time.Duration, logger *zap.Logger) *RedisInvoiceLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisInvoiceLocker{
		locker:  redislock.New(client),
		ttl:     ttl,
		timeout: timeout,
		logger:  logger.Named("invoice_lock"),
	}
}

func lockKey(invoiceID uuid.UUID) string {
	return "invoice_lock:" + invoiceID.String()
}

// Lock implements appinvoicing.InvoiceLocker. A lock still held by another
// process after the wait yields an INVOICE_LOCKED concurrency error.
func (l *RedisInvoiceLocker) Lock(ctx context.Context, invoiceID uuid.UUID) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	lock, err := l.locker.Obtain(waitCtx, lockKey(invoiceID), l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(lockRetryInterval),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, shared.NewConcurrencyError("INVOICE_LOCKED",
			"invoice %s is being modified by another process", invoiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock for invoice %s: %w", invoiceID, err)
	}

	unlock := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("Failed to release invoice lock",
				zap.String("invoice_id", invoiceID.String()),
				zap.Error(err),
			)
		}
	}
	return unlock, nil
}

var _ appinvoicing.InvoiceLocker = (*RedisInvoiceLocker)(nil)
