package invoicing

import (
	"context"
	"fmt"

	"github.com/erp/backoffice/internal/application/validation"
	"github.com/erp/backoffice/internal/application/view"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// GetInvoice returns one invoice of the agency
func (o *PaymentOrchestrator) GetInvoice(ctx context.Context, agencyID, invoiceID uuid.UUID) (*view.InvoiceView, error) {
	var result *view.InvoiceView
	err := o.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.Invoices().FindByIDForTenant(ctx, agencyID, invoiceID)
		if err != nil {
			return err
		}
		v := o.views.Invoice(inv)
		result = &v
		return nil
	})
	return result, err
}

// ListInvoices returns a page of the agency's invoices and the total count
func (o *PaymentOrchestrator) ListInvoices(ctx context.Context, agencyID uuid.UUID, filter InvoiceListFilter) ([]view.InvoiceView, int64, error) {
	if err := validation.Struct(filter); err != nil {
		return nil, 0, err
	}
	domainFilter, err := filter.toDomain()
	if err != nil {
		return nil, 0, err
	}

	var (
		result []view.InvoiceView
		total  int64
	)
	err = o.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		invoices, count, err := repos.Invoices().FindAllForTenant(ctx, agencyID, domainFilter)
		if err != nil {
			return fmt.Errorf("list invoices: %w", err)
		}
		result = o.views.Invoices(invoices)
		total = count
		return nil
	})
	return result, total, err
}

// ClientBalance returns the client's cached balance
func (o *PaymentOrchestrator) ClientBalance(ctx context.Context, agencyID, clientID uuid.UUID) (*view.ClientBalanceView, error) {
	var result *view.ClientBalanceView
	err := o.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		client, err := repos.Clients().FindByIDForTenant(ctx, agencyID, clientID)
		if err != nil {
			return err
		}
		v := o.views.Client(client)
		result = &v
		return nil
	})
	return result, err
}

// SupplierBalance returns the supplier's cached debt and credit
func (o *PaymentOrchestrator) SupplierBalance(ctx context.Context, agencyID, supplierID uuid.UUID) (*view.SupplierBalanceView, error) {
	var result *view.SupplierBalanceView
	err := o.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		supplier, err := repos.Suppliers().FindByIDForTenant(ctx, agencyID, supplierID)
		if err != nil {
			return err
		}
		v := o.views.Supplier(supplier)
		result = &v
		return nil
	})
	return result, err
}

// PartyBalance folds a party's balance from its invoices and ledger without
// reading or writing the cache
func (o *PaymentOrchestrator) PartyBalance(ctx context.Context, agencyID uuid.UUID, party shared.PartyRef) (*view.BalanceView, error) {
	var result *view.BalanceView
	err := o.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := requireParty(ctx, repos, agencyID, party); err != nil {
			return err
		}
		balance, err := o.projectors.compute(ctx, repos, agencyID, party)
		if err != nil {
			return err
		}
		v := o.views.Balance(balance)
		result = &v
		return nil
	})
	return result, err
}
