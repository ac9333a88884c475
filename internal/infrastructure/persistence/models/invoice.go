package models

import (
	"time"

	"github.com/erp/backoffice/internal/domain/invoicing"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate.
type InvoiceModel struct {
	AggregateModel
	TenantID       uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_invoice_tenant_sequence,priority:1"`
	CreatedBy      *uuid.UUID            `gorm:"type:uuid"`
	SequenceNumber string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_tenant_sequence,priority:2"`
	ClientID       *uuid.UUID            `gorm:"type:uuid;index"`
	SupplierID     *uuid.UUID            `gorm:"type:uuid;index"`
	Status         invoicing.Status      `gorm:"type:varchar(20);not null;default:'draft';index"`
	LineItems      invoicing.LineItems   `gorm:"type:jsonb;not null"`
	VATRate        decimal.Decimal       `gorm:"type:decimal(7,4);not null;default:0"`
	AmountNet      decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	AmountVAT      decimal.Decimal       `gorm:"column:amount_vat;type:decimal(18,4);not null;default:0"`
	AmountGross    decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	AmountPaid     decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	Payments       invoicing.Payments    `gorm:"type:jsonb;not null"`
	Adjustments    invoicing.Adjustments `gorm:"type:jsonb;not null"`
	IssueDate      time.Time             `gorm:"type:date;not null"`
	DueDate        time.Time             `gorm:"type:date;not null;index"`
	Notes          string                `gorm:"type:text"`
	SentAt         *time.Time
	PaidAt         *time.Time
	CancelledAt    *time.Time
	CancelReason   string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice aggregate.
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	return &invoicing.Invoice{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: m.root(),
			TenantID:          m.TenantID,
			CreatedBy:         m.CreatedBy,
		},
		SequenceNumber: m.SequenceNumber,
		ClientID:       m.ClientID,
		SupplierID:     m.SupplierID,
		Status:         m.Status,
		LineItems:      m.LineItems,
		VATRate:        m.VATRate,
		AmountNet:      m.AmountNet,
		AmountVAT:      m.AmountVAT,
		AmountGross:    m.AmountGross,
		AmountPaid:     m.AmountPaid,
		Payments:       m.Payments,
		Adjustments:    m.Adjustments,
		IssueDate:      m.IssueDate,
		DueDate:        m.DueDate,
		Notes:          m.Notes,
		SentAt:         m.SentAt,
		PaidAt:         m.PaidAt,
		CancelledAt:    m.CancelledAt,
		CancelReason:   m.CancelReason,
	}
}

// FromDomain populates the persistence model from a domain Invoice aggregate.
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.setRoot(inv.BaseAggregateRoot)
	m.TenantID = inv.TenantID
	m.CreatedBy = inv.CreatedBy
	m.SequenceNumber = inv.SequenceNumber
	m.ClientID = inv.ClientID
	m.SupplierID = inv.SupplierID
	m.Status = inv.Status
	m.LineItems = inv.LineItems
	m.VATRate = inv.VATRate
	m.AmountNet = inv.AmountNet
	m.AmountVAT = inv.AmountVAT
	m.AmountGross = inv.AmountGross
	m.AmountPaid = inv.AmountPaid
	m.Payments = inv.Payments
	m.Adjustments = inv.Adjustments
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.Notes = inv.Notes
	m.SentAt = inv.SentAt
	m.PaidAt = inv.PaidAt
	m.CancelledAt = inv.CancelledAt
	m.CancelReason = inv.CancelReason
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice aggregate.
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceSequenceModel is the per-agency, per-year counter row that hands out
// invoice numbers inside the creating transaction.
type InvoiceSequenceModel struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Year      int       `gorm:"primaryKey;autoIncrement:false"`
	LastValue int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceSequenceModel) TableName() string {
	return "invoice_sequences"
}
