package audit

import (
	"context"
	"sync"
	"sync/atomic"

	appinvoicing "github.com/erp/backoffice/internal/application/invoicing"
	"go.uber.org/zap"
)

const defaultBuffer = 256

type queued struct {
	ctx   context.Context
	entry appinvoicing.AuditEntry
}

// AsyncSink queues entries for a background worker. Record never blocks:
// when the queue is full the entry is dropped and counted.
type AsyncSink struct {
	next    appinvoicing.AuditCollaborator
	queue   chan queued
	done    chan struct{}
	logger  *zap.Logger
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewAsyncSink starts the worker feeding next. buffer <= 0 uses 256.
func NewAsyncSink(next appinvoicing.AuditCollaborator, buffer int, logger *zap.Logger) *AsyncSink {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AsyncSink{
		next:   next,
		queue:  make(chan queued, buffer),
		done:   make(chan struct{}),
		logger: logger.Named("audit"),
	}
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for q := range s.queue {
		s.deliver(q)
	}
}

func (s *AsyncSink) deliver(q queued) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Audit sink panicked",
				zap.String("action", q.entry.Action),
				zap.Any("panic", r),
			)
		}
	}()
	s.next.Record(q.ctx, q.entry)
}

// Record implements appinvoicing.AuditCollaborator
func (s *AsyncSink) Record(ctx context.Context, entry appinvoicing.AuditEntry) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop(entry, "closed")
		return
	}
	select {
	case s.queue <- queued{ctx: context.WithoutCancel(ctx), entry: entry}:
	default:
		s.drop(entry, "queue full")
	}
}

func (s *AsyncSink) drop(entry appinvoicing.AuditEntry, reason string) {
	total := s.dropped.Add(1)
	s.logger.Warn("Audit entry dropped",
		zap.String("reason", reason),
		zap.String("action", entry.Action),
		zap.String("invoice_id", entry.InvoiceID.String()),
		zap.Int64("dropped_total", total),
	)
}

// Dropped returns how many entries were discarded so far
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting entries and waits for the queue to drain or ctx to end
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ appinvoicing.AuditCollaborator = (*AsyncSink)(nil)
