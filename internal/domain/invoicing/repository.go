package invoicing

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	shared.Filter
	Status *Status
	Party  *shared.PartyRef
	From   *time.Time
	To     *time.Time
}

// InvoiceRepository persists invoices. Every lookup is scoped by agency and
// returns a NotFound DomainError for rows owned by another agency.
type InvoiceRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)
	FindByParty(ctx context.Context, tenantID uuid.UUID, party shared.PartyRef) ([]Invoice, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, int64, error)
	// FindByStatusDueBefore lists invoices in one of statuses with a due date before the given time
	FindByStatusDueBefore(ctx context.Context, tenantID uuid.UUID, statuses []Status, before time.Time) ([]Invoice, error)
	// FindAllByTenant returns every invoice of the agency, used by the reconcile sweep
	FindAllByTenant(ctx context.Context, tenantID uuid.UUID) ([]Invoice, error)
	// SequenceNumbersForYear returns the numbers issued by the agency containing the year
	SequenceNumbersForYear(ctx context.Context, tenantID uuid.UUID, year int) ([]string, error)
	// Create inserts a new invoice; a taken sequence number yields a duplicate sequence error
	Create(ctx context.Context, inv *Invoice) error
	// SaveWithLock updates with an optimistic version check
	SaveWithLock(ctx context.Context, inv *Invoice) error
	// Delete removes the invoice only while it is still at the loaded version
	Delete(ctx context.Context, inv *Invoice) error
}
