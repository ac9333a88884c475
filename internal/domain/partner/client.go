package partner

import (
	"strings"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client is a traveller or company the agency bills.
// Balance and CreditBalance are a cache of the projection in balance.go and
// are only written through ApplyBalance.
type Client struct {
	shared.TenantAggregateRoot
	Name               string
	Email              string
	Phone              string
	Balance            decimal.Decimal // outstanding debt owed to the agency
	CreditBalance      decimal.Decimal // carried-over payments held for the client
	BalanceRefreshedAt *time.Time
}

// NewClient creates a new client with zero balances
func NewClient(tenantID uuid.UUID, name string) (*Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("CLIENT_NAME_REQUIRED", "client name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewValidationError("CLIENT_NAME_TOO_LONG", "client name cannot exceed 200 characters")
	}
	return &Client{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Balance:             decimal.Zero,
		CreditBalance:       decimal.Zero,
	}, nil
}

// Party returns the reference used by invoices and operations
func (c *Client) Party() shared.PartyRef {
	return shared.ClientParty(c.ID)
}

// CachedBalance returns the cached projection
func (c *Client) CachedBalance() Balance {
	return Balance{Debt: c.Balance, Credit: c.CreditBalance}
}

// ApplyBalance overwrites the cache with a freshly folded projection.
// It reports whether anything changed so callers can skip the write.
func (c *Client) ApplyBalance(b Balance, at time.Time) bool {
	if c.CachedBalance().Equal(b) {
		return false
	}
	c.Balance = b.Debt
	c.CreditBalance = b.Credit
	c.BalanceRefreshedAt = &at
	c.IncrementVersion()
	return true
}
