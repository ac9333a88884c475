package ledger

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// OperationFilter narrows operation listings
type OperationFilter struct {
	shared.Filter
	From      *time.Time
	To        *time.Time
	InvoiceID *uuid.UUID
	Category  *Category
	Method    *PaymentMethod
	Direction *Direction
}

// OperationRepository persists ledger operations
type OperationRepository interface {
	// FindByIDForTenant returns NotFound when the operation belongs to another agency
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Operation, error)
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Operation, error)
	FindByParty(ctx context.Context, tenantID uuid.UUID, party shared.PartyRef) ([]Operation, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter OperationFilter) ([]Operation, int64, error)
	// FindUntil returns every operation dated on or before asOf
	FindUntil(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]Operation, error)
	Create(ctx context.Context, op *Operation) error
	// SaveWithLock persists free-text edits and detachment with an optimistic version check
	SaveWithLock(ctx context.Context, op *Operation) error
	DeleteByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) error
}
