package partner

import (
	"context"

	"github.com/google/uuid"
)

// ClientRepository persists clients
type ClientRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Client, error)
	// FindByIDForUpdate locks the row for the rest of the transaction
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Client, error)
	ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
	Create(ctx context.Context, client *Client) error
	SaveWithLock(ctx context.Context, client *Client) error
}

// SupplierRepository persists suppliers
type SupplierRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Supplier, error)
	// FindByIDForUpdate locks the row for the rest of the transaction
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Supplier, error)
	ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
	Create(ctx context.Context, supplier *Supplier) error
	SaveWithLock(ctx context.Context, supplier *Supplier) error
}
