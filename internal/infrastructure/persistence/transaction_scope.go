package persistence

import (
	"context"
	"time"

	appinvoicing "github.com/erp/backoffice/internal/application/invoicing"
	"github.com/erp/backoffice/internal/domain/invoicing"
	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/erp/backoffice/internal/domain/partner"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Invoice, ledger and owner writes of one orchestrator operation commit or
// roll back together.
type GormTransactionScope struct {
	db  *gorm.DB
	now func() time.Time
}

// TransactionScopeOption configures a GormTransactionScope
type TransactionScopeOption func(*GormTransactionScope)

// WithTransactionClock sets the time source for rows the repositories stamp
// themselves, such as the sequence counter
func WithTransactionClock(now func() time.Time) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		if now != nil {
			s.now = now
		}
	}
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, opts ...TransactionScopeOption) *GormTransactionScope {
	s := &GormTransactionScope{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinvoicing.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, now: s.now})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx  *gorm.DB
	now func() time.Time
}

// Invoices returns the invoice repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Invoices() invoicing.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

// Operations returns the ledger operation repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Operations() ledger.OperationRepository {
	return NewGormOperationRepository(r.tx)
}

// Clients returns the client repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Clients() partner.ClientRepository {
	return NewGormClientRepository(r.tx)
}

// Suppliers returns the supplier repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Suppliers() partner.SupplierRepository {
	return NewGormSupplierRepository(r.tx)
}

// Sequences returns the counter-row allocator scoped to the current transaction.
func (r *gormTransactionalRepositories) Sequences() invoicing.SequenceAllocator {
	return NewGormSequenceAllocator(r.tx, r.now)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appinvoicing.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appinvoicing.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
