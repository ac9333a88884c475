package models

import (
	"time"

	"github.com/erp/backoffice/internal/domain/partner"
	"github.com/shopspring/decimal"
)

// ClientModel is the persistence model for the Client domain entity.
type ClientModel struct {
	TenantAggregateModel
	Name               string          `gorm:"type:varchar(200);not null"`
	Email              string          `gorm:"type:varchar(200)"`
	Phone              string          `gorm:"type:varchar(50)"`
	Balance            decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CreditBalance      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	BalanceRefreshedAt *time.Time
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}

// ToDomain converts the persistence model to a domain Client entity.
func (m *ClientModel) ToDomain() *partner.Client {
	c := &partner.Client{
		Name:               m.Name,
		Email:              m.Email,
		Phone:              m.Phone,
		Balance:            m.Balance,
		CreditBalance:      m.CreditBalance,
		BalanceRefreshedAt: m.BalanceRefreshedAt,
	}
	c.TenantAggregateRoot = m.tenantRoot()
	return c
}

// FromDomain populates the persistence model from a domain Client entity.
func (m *ClientModel) FromDomain(c *partner.Client) {
	m.setTenantRoot(c.TenantAggregateRoot)
	m.Name = c.Name
	m.Email = c.Email
	m.Phone = c.Phone
	m.Balance = c.Balance
	m.CreditBalance = c.CreditBalance
	m.BalanceRefreshedAt = c.BalanceRefreshedAt
}

// ClientModelFromDomain creates a new persistence model from a domain Client entity.
func ClientModelFromDomain(c *partner.Client) *ClientModel {
	m := &ClientModel{}
	m.FromDomain(c)
	return m
}

// SupplierModel is the persistence model for the Supplier domain entity.
type SupplierModel struct {
	TenantAggregateModel
	Name               string          `gorm:"type:varchar(200);not null"`
	Email              string          `gorm:"type:varchar(200)"`
	Phone              string          `gorm:"type:varchar(50)"`
	DebtOwedByAgency   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CreditOwedToAgency decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	BalanceRefreshedAt *time.Time
}

// TableName returns the table name for GORM
func (SupplierModel) TableName() string {
	return "suppliers"
}

// ToDomain converts the persistence model to a domain Supplier entity.
func (m *SupplierModel) ToDomain() *partner.Supplier {
	s := &partner.Supplier{
		Name:               m.Name,
		Email:              m.Email,
		Phone:              m.Phone,
		DebtOwedByAgency:   m.DebtOwedByAgency,
		CreditOwedToAgency: m.CreditOwedToAgency,
		BalanceRefreshedAt: m.BalanceRefreshedAt,
	}
	s.TenantAggregateRoot = m.tenantRoot()
	return s
}

// FromDomain populates the persistence model from a domain Supplier entity.
func (m *SupplierModel) FromDomain(s *partner.Supplier) {
	m.setTenantRoot(s.TenantAggregateRoot)
	m.Name = s.Name
	m.Email = s.Email
	m.Phone = s.Phone
	m.DebtOwedByAgency = s.DebtOwedByAgency
	m.CreditOwedToAgency = s.CreditOwedToAgency
	m.BalanceRefreshedAt = s.BalanceRefreshedAt
}

// SupplierModelFromDomain creates a new persistence model from a domain Supplier entity.
func SupplierModelFromDomain(s *partner.Supplier) *SupplierModel {
	m := &SupplierModel{}
	m.FromDomain(s)
	return m
}
