package models

import (
	"time"

	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationModel is the persistence model for a cash ledger operation.
type OperationModel struct {
	TenantAggregateModel
	Direction   ledger.Direction     `gorm:"type:varchar(10);not null"`
	Category    ledger.Category      `gorm:"type:varchar(30);not null;index"`
	Method      ledger.PaymentMethod `gorm:"type:varchar(20);not null"`
	Amount      decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Date        time.Time            `gorm:"type:date;not null;index"`
	InvoiceID   *uuid.UUID           `gorm:"type:uuid;index"`
	ClientID    *uuid.UUID           `gorm:"type:uuid;index"`
	SupplierID  *uuid.UUID           `gorm:"type:uuid;index"`
	Description string               `gorm:"type:varchar(500)"`
	Reference   string               `gorm:"type:varchar(100)"`
	Metadata    ledger.Metadata      `gorm:"type:jsonb;not null"`
}

// TableName returns the table name for GORM
func (OperationModel) TableName() string {
	return "operations"
}

// ToDomain converts the persistence model to a domain Operation.
func (m *OperationModel) ToDomain() *ledger.Operation {
	op := &ledger.Operation{
		Direction:   m.Direction,
		Category:    m.Category,
		Method:      m.Method,
		Amount:      m.Amount,
		Date:        m.Date,
		InvoiceID:   m.InvoiceID,
		ClientID:    m.ClientID,
		SupplierID:  m.SupplierID,
		Description: m.Description,
		Reference:   m.Reference,
		Metadata:    m.Metadata,
	}
	op.TenantAggregateRoot = m.tenantRoot()
	return op
}

// FromDomain populates the persistence model from a domain Operation.
func (m *OperationModel) FromDomain(op *ledger.Operation) {
	m.setTenantRoot(op.TenantAggregateRoot)
	m.Direction = op.Direction
	m.Category = op.Category
	m.Method = op.Method
	m.Amount = op.Amount
	m.Date = op.Date
	m.InvoiceID = op.InvoiceID
	m.ClientID = op.ClientID
	m.SupplierID = op.SupplierID
	m.Description = op.Description
	m.Reference = op.Reference
	m.Metadata = op.Metadata
}

// OperationModelFromDomain creates a new persistence model from a domain Operation.
func OperationModelFromDomain(op *ledger.Operation) *OperationModel {
	m := &OperationModel{}
	m.FromDomain(op)
	return m
}
