package partner

import (
	"strings"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Supplier is an airline, hotel or tour operator that bills the agency.
// Both running totals are a cache of the projection in balance.go.
type Supplier struct {
	shared.TenantAggregateRoot
	Name               string
	Email              string
	Phone              string
	DebtOwedByAgency   decimal.Decimal
	CreditOwedToAgency decimal.Decimal
	BalanceRefreshedAt *time.Time
}

// NewSupplier creates a new supplier with zero balances
func NewSupplier(tenantID uuid.UUID, name string) (*Supplier, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("SUPPLIER_NAME_REQUIRED", "supplier name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewValidationError("SUPPLIER_NAME_TOO_LONG", "supplier name cannot exceed 200 characters")
	}
	return &Supplier{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		DebtOwedByAgency:    decimal.Zero,
		CreditOwedToAgency:  decimal.Zero,
	}, nil
}

// Party returns the reference used by invoices and operations
func (s *Supplier) Party() shared.PartyRef {
	return shared.SupplierParty(s.ID)
}

// CachedBalance returns the cached projection
func (s *Supplier) CachedBalance() Balance {
	return Balance{Debt: s.DebtOwedByAgency, Credit: s.CreditOwedToAgency}
}

// ApplyBalance overwrites the cache with a freshly folded projection
func (s *Supplier) ApplyBalance(b Balance, at time.Time) bool {
	if s.CachedBalance().Equal(b) {
		return false
	}
	s.DebtOwedByAgency = b.Debt
	s.CreditOwedToAgency = b.Credit
	s.BalanceRefreshedAt = &at
	s.IncrementVersion()
	return true
}
