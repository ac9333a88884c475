package invoicing

import (
	"context"

	"github.com/erp/backoffice/internal/domain/invoicing"
	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/erp/backoffice/internal/domain/partner"
)

// TransactionScope provides transactional access to the repositories an
// orchestrator operation touches. Invoice, ledger and party rows written
// inside Execute are committed or rolled back together.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within a transaction.
// All repositories returned share the same underlying database transaction.
type TransactionalRepositories interface {
	Invoices() invoicing.InvoiceRepository
	Operations() ledger.OperationRepository
	Clients() partner.ClientRepository
	Suppliers() partner.SupplierRepository
	// Sequences returns the counter-row allocator bound to the transaction
	Sequences() invoicing.SequenceAllocator
}

// NoOpTransactionScope runs the function without a real transaction.
// Useful for tests or read paths where atomicity is irrelevant.
type NoOpTransactionScope struct {
	invoices   invoicing.InvoiceRepository
	operations ledger.OperationRepository
	clients    partner.ClientRepository
	suppliers  partner.SupplierRepository
	sequences  invoicing.SequenceAllocator
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	invoices invoicing.InvoiceRepository,
	operations ledger.OperationRepository,
	clients partner.ClientRepository,
	suppliers partner.SupplierRepository,
	sequences invoicing.SequenceAllocator,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		invoices:   invoices,
		operations: operations,
		clients:    clients,
		suppliers:  suppliers,
		sequences:  sequences,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Invoices returns the invoice repository.
func (s *NoOpTransactionScope) Invoices() invoicing.InvoiceRepository { return s.invoices }

// Operations returns the operation repository.
func (s *NoOpTransactionScope) Operations() ledger.OperationRepository { return s.operations }

// Clients returns the client repository.
func (s *NoOpTransactionScope) Clients() partner.ClientRepository { return s.clients }

// Suppliers returns the supplier repository.
func (s *NoOpTransactionScope) Suppliers() partner.SupplierRepository { return s.suppliers }

// Sequences returns the sequence allocator.
func (s *NoOpTransactionScope) Sequences() invoicing.SequenceAllocator { return s.sequences }

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
