package invoicing

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/application/view"
	"github.com/google/uuid"
)

// AuditEntry is a before/after snapshot of one orchestrator operation
type AuditEntry struct {
	Action    string
	AgencyID  uuid.UUID
	ActorID   uuid.UUID
	InvoiceID uuid.UUID
	Before    *view.InvoiceView
	After     *view.InvoiceView
	At        time.Time
}

// AuditCollaborator receives snapshots after a committed change.
// Record must not block the caller and has no way to fail the operation.
type AuditCollaborator interface {
	Record(ctx context.Context, entry AuditEntry)
}

// NopAudit discards every entry
type NopAudit struct{}

// Record implements AuditCollaborator
func (NopAudit) Record(context.Context, AuditEntry) {}

// InvoiceLocker serializes orchestrator operations on one invoice across
// processes. Lock returns a ConcurrencyConflict error when the invoice is
// busy beyond the locker's bounded wait.
type InvoiceLocker interface {
	Lock(ctx context.Context, invoiceID uuid.UUID) (unlock func(), err error)
}

// NopLocker relies on the optimistic version check alone
type NopLocker struct{}

// Lock implements InvoiceLocker
func (NopLocker) Lock(context.Context, uuid.UUID) (func(), error) {
	return func() {}, nil
}
