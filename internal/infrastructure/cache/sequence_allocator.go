package cache

import (
	"context"
	"fmt"

	"github.com/erp/backoffice/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultSequenceKeyPrefix = "invoice_seq"

// SequenceSource lists the numbers already stored for an agency and year.
// The allocator seeds its counter from it on first use.
type SequenceSource interface {
	SequenceNumbersForYear(ctx context.Context, agencyID uuid.UUID, year int) ([]string, error)
}

// RedisSequenceAllocator hands out invoice numbers with INCR on one key per
// agency and year. Numbers taken by a rolled back transaction are not reused.
type RedisSequenceAllocator struct {
	client    redis.UniversalClient
	source    SequenceSource
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisSequenceAllocator creates an allocator; an empty prefix uses "invoice_seq"
func NewRedisSequenceAllocator(client redis.UniversalClient, source SequenceSource, keyPrefix string, logger *zap.Logger) *RedisSequenceAllocator {
	if keyPrefix == "" {
		keyPrefix = defaultSequenceKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSequenceAllocator{
		client:    client,
		source:    source,
		keyPrefix: keyPrefix,
		logger:    logger.Named("sequence"),
	}
}

func (a *RedisSequenceAllocator) key(agencyID uuid.UUID, year int) string {
	return fmt.Sprintf("%s:%s:%d", a.keyPrefix, agencyID, year)
}

// Next implements invoicing.SequenceAllocator
func (a *RedisSequenceAllocator) Next(ctx context.Context, agencyID uuid.UUID, year int) (int64, error) {
	key := a.key(agencyID, year)

	exists, err := a.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("check sequence key %s: %w", key, err)
	}
	if exists == 0 {
		if err := a.seed(ctx, key, agencyID, year); err != nil {
			return 0, err
		}
	}

	n, err := a.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment sequence key %s: %w", key, err)
	}
	return n, nil
}

// seed sets the counter to the highest stored number. SETNX keeps the first
// writer when several processes seed at once.
func (a *RedisSequenceAllocator) seed(ctx context.Context, key string, agencyID uuid.UUID, year int) error {
	numbers, err := a.source.SequenceNumbersForYear(ctx, agencyID, year)
	if err != nil {
		return fmt.Errorf("load sequence numbers for seeding: %w", err)
	}
	highest := invoicing.MaxSequence(numbers, year)
	set, err := a.client.SetNX(ctx, key, highest, 0).Result()
	if err != nil {
		return fmt.Errorf("seed sequence key %s: %w", key, err)
	}
	if set {
		a.logger.Info("Sequence counter seeded",
			zap.String("agency_id", agencyID.String()),
			zap.Int("year", year),
			zap.Int64("last_value", highest),
		)
	}
	return nil
}

var _ invoicing.SequenceAllocator = (*RedisSequenceAllocator)(nil)
