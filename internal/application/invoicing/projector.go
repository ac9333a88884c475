package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/domain/partner"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// Projection is the outcome of refreshing one party's cached balance
type Projection struct {
	Party   shared.PartyRef
	Name    string
	Before  partner.Balance
	After   partner.Balance
	Changed bool
}

// fold computes a party's balance from its invoices and ledger operations
func fold(ctx context.Context, repos TransactionalRepositories, agencyID uuid.UUID, party shared.PartyRef) (partner.Balance, error) {
	invoices, err := repos.Invoices().FindByParty(ctx, agencyID, party)
	if err != nil {
		return partner.Balance{}, fmt.Errorf("load invoices of %s: %w", party, err)
	}
	ops, err := repos.Operations().FindByParty(ctx, agencyID, party)
	if err != nil {
		return partner.Balance{}, fmt.Errorf("load operations of %s: %w", party, err)
	}
	return partner.ComputeBalance(invoices, ops), nil
}

// ClientBalanceProjector derives and caches a client's outstanding debt
type ClientBalanceProjector struct{}

// NewClientBalanceProjector creates a client projector
func NewClientBalanceProjector() *ClientBalanceProjector {
	return &ClientBalanceProjector{}
}

// Compute folds the authoritative balance without touching the cache
func (p *ClientBalanceProjector) Compute(ctx context.Context, repos TransactionalRepositories, agencyID, clientID uuid.UUID) (partner.Balance, error) {
	return fold(ctx, repos, agencyID, shared.ClientParty(clientID))
}

// Refresh locks the client row, folds its balance and overwrites the cache
func (p *ClientBalanceProjector) Refresh(ctx context.Context, repos TransactionalRepositories, agencyID, clientID uuid.UUID, at time.Time) (*Projection, error) {
	client, err := repos.Clients().FindByIDForUpdate(ctx, agencyID, clientID)
	if err != nil {
		return nil, err
	}
	computed, err := p.Compute(ctx, repos, agencyID, clientID)
	if err != nil {
		return nil, err
	}

	result := &Projection{Party: client.Party(), Name: client.Name, Before: client.CachedBalance(), After: computed}
	if client.ApplyBalance(computed, at) {
		if err := repos.Clients().SaveWithLock(ctx, client); err != nil {
			return nil, fmt.Errorf("save client balance: %w", err)
		}
		result.Changed = true
	}
	return result, nil
}

// SupplierBalanceProjector derives and caches what the agency owes a supplier
// and what the supplier owes back as credit
type SupplierBalanceProjector struct{}

// NewSupplierBalanceProjector creates a supplier projector
func NewSupplierBalanceProjector() *SupplierBalanceProjector {
	return &SupplierBalanceProjector{}
}

// Compute folds the authoritative balance without touching the cache
func (p *SupplierBalanceProjector) Compute(ctx context.Context, repos TransactionalRepositories, agencyID, supplierID uuid.UUID) (partner.Balance, error) {
	return fold(ctx, repos, agencyID, shared.SupplierParty(supplierID))
}

// Refresh locks the supplier row, folds its balance and overwrites the cache
func (p *SupplierBalanceProjector) Refresh(ctx context.Context, repos TransactionalRepositories, agencyID, supplierID uuid.UUID, at time.Time) (*Projection, error) {
	supplier, err := repos.Suppliers().FindByIDForUpdate(ctx, agencyID, supplierID)
	if err != nil {
		return nil, err
	}
	computed, err := p.Compute(ctx, repos, agencyID, supplierID)
	if err != nil {
		return nil, err
	}

	result := &Projection{Party: supplier.Party(), Name: supplier.Name, Before: supplier.CachedBalance(), After: computed}
	if supplier.ApplyBalance(computed, at) {
		if err := repos.Suppliers().SaveWithLock(ctx, supplier); err != nil {
			return nil, fmt.Errorf("save supplier balance: %w", err)
		}
		result.Changed = true
	}
	return result, nil
}

// projectors dispatches a party to the right projector
type projectors struct {
	clients   *ClientBalanceProjector
	suppliers *SupplierBalanceProjector
}

func newProjectors() projectors {
	return projectors{clients: NewClientBalanceProjector(), suppliers: NewSupplierBalanceProjector()}
}

func (p projectors) compute(ctx context.Context, repos TransactionalRepositories, agencyID uuid.UUID, party shared.PartyRef) (partner.Balance, error) {
	if party.IsSupplier() {
		return p.suppliers.Compute(ctx, repos, agencyID, party.ID)
	}
	return p.clients.Compute(ctx, repos, agencyID, party.ID)
}

func (p projectors) refresh(ctx context.Context, repos TransactionalRepositories, agencyID uuid.UUID, party shared.PartyRef, at time.Time) (*Projection, error) {
	if party.IsSupplier() {
		return p.suppliers.Refresh(ctx, repos, agencyID, party.ID, at)
	}
	return p.clients.Refresh(ctx, repos, agencyID, party.ID, at)
}

// requireParty returns NotFound unless the party exists in the agency
func requireParty(ctx context.Context, repos TransactionalRepositories, agencyID uuid.UUID, party shared.PartyRef) error {
	if err := party.Validate(); err != nil {
		return err
	}
	var err error
	if party.IsSupplier() {
		_, err = repos.Suppliers().FindByIDForTenant(ctx, agencyID, party.ID)
	} else {
		_, err = repos.Clients().FindByIDForTenant(ctx, agencyID, party.ID)
	}
	return err
}
