// Package invoicing hosts the PaymentOrchestrator, the only writer of invoice
// state, ledger entries and cached party balances.
//
// Every state-changing operation follows the same sequence inside one
// transaction: validate, mutate the invoice, append ledger entries, refresh
// the balance projection of every touched party. The audit collaborator is
// notified after commit.
package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/application/view"
	"github.com/erp/backoffice/internal/domain/invoicing"
	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const spanService = "payment_orchestrator"

// Config tunes retries and numbering
type Config struct {
	SequencePrefix      string
	MaxSequenceAttempts int
	MaxConflictRetries  int
}

// DefaultConfig returns the default orchestrator configuration
func DefaultConfig() Config {
	return Config{
		SequencePrefix:      invoicing.DefaultSequencePrefix,
		MaxSequenceAttempts: 5,
		MaxConflictRetries:  2,
	}
}

// Option configures a PaymentOrchestrator
type Option func(*PaymentOrchestrator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *PaymentOrchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSequenceAllocator replaces the transactional counter-row allocator
func WithSequenceAllocator(allocator invoicing.SequenceAllocator) Option {
	return func(o *PaymentOrchestrator) {
		o.allocator = allocator
	}
}

// WithLocker sets the cross-process invoice locker
func WithLocker(locker InvoiceLocker) Option {
	return func(o *PaymentOrchestrator) {
		if locker != nil {
			o.locker = locker
		}
	}
}

// WithAudit sets the audit collaborator
func WithAudit(audit AuditCollaborator) Option {
	return func(o *PaymentOrchestrator) {
		if audit != nil {
			o.audit = audit
		}
	}
}

// WithConfig overrides retry and numbering settings. Non-positive values keep the defaults.
func WithConfig(cfg Config) Option {
	return func(o *PaymentOrchestrator) {
		if cfg.SequencePrefix != "" {
			o.cfg.SequencePrefix = cfg.SequencePrefix
		}
		if cfg.MaxSequenceAttempts > 0 {
			o.cfg.MaxSequenceAttempts = cfg.MaxSequenceAttempts
		}
		if cfg.MaxConflictRetries > 0 {
			o.cfg.MaxConflictRetries = cfg.MaxConflictRetries
		}
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(o *PaymentOrchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// PaymentOrchestrator performs every invoice state transition
type PaymentOrchestrator struct {
	scope      TransactionScope
	allocator  invoicing.SequenceAllocator
	locker     InvoiceLocker
	audit      AuditCollaborator
	views      *view.Builder
	projectors projectors
	logger     *zap.Logger
	cfg        Config
	now        func() time.Time
}

// NewPaymentOrchestrator creates a PaymentOrchestrator
func NewPaymentOrchestrator(scope TransactionScope, opts ...Option) *PaymentOrchestrator {
	o := &PaymentOrchestrator{
		scope:      scope,
		locker:     NopLocker{},
		audit:      NopAudit{},
		views:      view.NewBuilder(),
		projectors: newProjectors(),
		logger:     zap.NewNop(),
		cfg:        DefaultConfig(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// unitOfWork carries one transaction attempt
type unitOfWork struct {
	repos   TransactionalRepositories
	ledger  *ledger.Ledger
	touched []shared.PartyRef
	deleted bool
}

func newUnitOfWork(repos TransactionalRepositories) *unitOfWork {
	return &unitOfWork{repos: repos, ledger: ledger.New(repos.Operations())}
}

// touch marks a party whose projection must be refreshed before commit
func (u *unitOfWork) touch(party shared.PartyRef) {
	if party.IsZero() {
		return
	}
	for _, p := range u.touched {
		if p == party {
			return
		}
	}
	u.touched = append(u.touched, party)
}

// within runs fn in a transaction and refreshes every touched party before
// commit. Concurrency conflicts re-run the whole transaction a bounded
// number of times; duplicate sequence numbers are left to CreateInvoice.
func (o *PaymentOrchestrator) within(ctx context.Context, actor shared.Actor, fn func(ctx context.Context, u *unitOfWork) error) error {
	for attempt := 0; ; attempt++ {
		err := o.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			u := newUnitOfWork(repos)
			if err := fn(ctx, u); err != nil {
				return err
			}
			return o.refresh(ctx, u, actor.AgencyID)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) || invoicing.IsDuplicateSequence(err) || attempt >= o.cfg.MaxConflictRetries {
			return err
		}
		o.logger.Warn("Concurrent modification, retrying",
			zap.String("agency_id", actor.AgencyID.String()),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
}

// refresh folds and caches the balance of every touched party
func (o *PaymentOrchestrator) refresh(ctx context.Context, u *unitOfWork, agencyID uuid.UUID) error {
	for _, party := range u.touched {
		projection, err := o.projectors.refresh(ctx, u.repos, agencyID, party, o.now())
		if err != nil {
			return fmt.Errorf("refresh balance of %s: %w", party, err)
		}
		if projection.Changed {
			o.logger.Debug("Party balance refreshed",
				zap.String("party", party.String()),
				zap.String("debt", projection.After.Debt.StringFixed(2)),
				zap.String("credit", projection.After.Credit.StringFixed(2)),
			)
		}
	}
	return nil
}

// lockParty takes the party row lock before a credit read so two operations
// cannot both consume the same credit
func (o *PaymentOrchestrator) lockParty(ctx context.Context, u *unitOfWork, agencyID uuid.UUID, party shared.PartyRef) error {
	if err := party.Validate(); err != nil {
		return err
	}
	var err error
	if party.IsSupplier() {
		_, err = u.repos.Suppliers().FindByIDForUpdate(ctx, agencyID, party.ID)
	} else {
		_, err = u.repos.Clients().FindByIDForUpdate(ctx, agencyID, party.ID)
	}
	return err
}

// availableCredit returns the credit the agency holds for the party
func (o *PaymentOrchestrator) availableCredit(ctx context.Context, u *unitOfWork, agencyID uuid.UUID, party shared.PartyRef) (decimal.Decimal, error) {
	ops, err := u.repos.Operations().FindByParty(ctx, agencyID, party)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load operations of %s: %w", party, err)
	}
	return ledger.CreditHeld(ops), nil
}

// invoiceMutation changes one loaded invoice within a unit of work
type invoiceMutation func(ctx context.Context, u *unitOfWork, inv *invoicing.Invoice) error

// mutateInvoice loads an invoice, applies fn and persists the result. It
// owns locking, tracing, logging and the audit snapshot of the operation.
func (o *PaymentOrchestrator) mutateInvoice(
	ctx context.Context,
	actor shared.Actor,
	invoiceID uuid.UUID,
	action string,
	fn invoiceMutation,
) (*view.InvoiceView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, action)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgencyID, actor.AgencyID.String(),
		telemetry.SpanAttrActorID, actor.UserID.String(),
		telemetry.SpanAttrInvoiceID, invoiceID.String(),
	)

	if err := actor.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	unlock, err := o.locker.Lock(ctx, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	var before, after *view.InvoiceView
	err = o.within(ctx, actor, func(ctx context.Context, u *unitOfWork) error {
		inv, err := u.repos.Invoices().FindByIDForTenant(ctx, actor.AgencyID, invoiceID)
		if err != nil {
			return err
		}
		snapshot := o.views.Invoice(inv)
		before = &snapshot
		u.touch(inv.Owner())

		version := inv.Version
		if err := fn(ctx, u, inv); err != nil {
			return err
		}
		if u.deleted {
			after = nil
			return nil
		}
		if inv.Version != version {
			// one stored version step per operation, however many transitions it made
			inv.Version = version + 1
			if err := u.repos.Invoices().SaveWithLock(ctx, inv); err != nil {
				return fmt.Errorf("save invoice: %w", err)
			}
		}
		u.touch(inv.Owner())
		result := o.views.Invoice(inv)
		after = &result
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	o.record(ctx, action, actor, invoiceID, before, after)
	if after != nil {
		telemetry.SetAttributes(span,
			telemetry.SpanAttrSequenceNumber, after.SequenceNumber,
			telemetry.SpanAttrInvoiceStatus, after.Status,
		)
	}
	telemetry.SetOK(span)
	return after, nil
}

// record hands a committed change to the audit collaborator and the log
func (o *PaymentOrchestrator) record(ctx context.Context, action string, actor shared.Actor, invoiceID uuid.UUID, before, after *view.InvoiceView) {
	if before != nil && after != nil && before.Version == after.Version {
		return
	}
	fields := []zap.Field{
		zap.String("action", action),
		zap.String("agency_id", actor.AgencyID.String()),
		zap.String("invoice_id", invoiceID.String()),
	}
	if before != nil {
		fields = append(fields, zap.String("from_status", before.Status))
	}
	if after != nil {
		fields = append(fields, zap.String("to_status", after.Status), zap.String("amount_paid", after.AmountPaid))
	}
	o.logger.Info("Invoice updated", fields...)

	o.audit.Record(ctx, AuditEntry{
		Action:    action,
		AgencyID:  actor.AgencyID,
		ActorID:   actor.UserID,
		InvoiceID: invoiceID,
		Before:    before,
		After:     after,
		At:        o.now(),
	})
}
