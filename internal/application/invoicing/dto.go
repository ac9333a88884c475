package invoicing

import (
	"time"

	"github.com/erp/backoffice/internal/domain/invoicing"
	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItemInput is one billed line as submitted by the caller.
// Line totals are always recomputed.
type LineItemInput struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

// InvoiceContentRequest holds the editable content of an invoice.
// Exactly one of ClientID and SupplierID must be set.
type InvoiceContentRequest struct {
	ClientID   *uuid.UUID      `json:"client_id" validate:"required_without=SupplierID,excluded_with=SupplierID"`
	SupplierID *uuid.UUID      `json:"supplier_id" validate:"required_without=ClientID"`
	Lines      []LineItemInput `json:"lines" validate:"max=200,dive"`
	VATRate    decimal.Decimal `json:"vat_rate" validate:"gte=0,lte=100"`
	IssueDate  time.Time       `json:"issue_date" validate:"required"`
	DueDate    time.Time       `json:"due_date"`
	Notes      string          `json:"notes" validate:"max=2000"`
}

// CreateInvoiceRequest creates a draft invoice
type CreateInvoiceRequest struct {
	InvoiceContentRequest
}

// EditInvoiceRequest replaces the content of an invoice
type EditInvoiceRequest struct {
	InvoiceContentRequest
}

// RecordPaymentRequest applies money to an invoice
type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"required,oneof=cash transfer cheque credit_balance"`
	Date      time.Time       `json:"date"`
	Reference string          `json:"reference" validate:"max=100"`
}

// AdjustmentRequest issues a credit note or a refund
type AdjustmentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method" validate:"required,oneof=cash transfer cheque"`
	Date   time.Time       `json:"date"`
	Reason string          `json:"reason" validate:"max=500"`
}

// CancelInvoiceRequest voids an issued invoice
type CancelInvoiceRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// SupplierPrepaymentRequest records money advanced to a supplier
type SupplierPrepaymentRequest struct {
	SupplierID uuid.UUID       `json:"supplier_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method" validate:"required,oneof=cash transfer cheque"`
	Date       time.Time       `json:"date"`
	Reference  string          `json:"reference" validate:"max=100"`
}

// InvoiceListFilter narrows ListInvoices
type InvoiceListFilter struct {
	Status     string     `json:"status" validate:"omitempty,oneof=draft sent partially_paid paid overdue cancelled"`
	ClientID   *uuid.UUID `json:"client_id" validate:"excluded_with=SupplierID"`
	SupplierID *uuid.UUID `json:"supplier_id"`
	From       *time.Time `json:"from"`
	To         *time.Time `json:"to"`
	Page       int        `json:"page" validate:"gte=0"`
	PageSize   int        `json:"page_size" validate:"gte=0,lte=100"`
}

// owner resolves the request's party
func (r InvoiceContentRequest) owner() (shared.PartyRef, error) {
	return shared.PartyFromIDs(r.ClientID, r.SupplierID)
}

// lineItems builds domain line items, recomputing every total
func (r InvoiceContentRequest) lineItems() (invoicing.LineItems, error) {
	lines := make(invoicing.LineItems, 0, len(r.Lines))
	for _, in := range r.Lines {
		line, err := invoicing.NewLineItem(in.Description, in.Quantity, in.UnitPrice)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// toDomain converts the list filter to a repository filter
func (f InvoiceListFilter) toDomain() (invoicing.InvoiceFilter, error) {
	filter := invoicing.InvoiceFilter{
		Filter: shared.Filter{
			Page:     f.Page,
			PageSize: f.PageSize,
			OrderBy:  "issue_date",
			OrderDir: "desc",
		},
		From: f.From,
		To:   f.To,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	if f.Status != "" {
		status := invoicing.Status(f.Status)
		filter.Status = &status
	}
	if f.ClientID != nil || f.SupplierID != nil {
		party, err := shared.PartyFromIDs(f.ClientID, f.SupplierID)
		if err != nil {
			return filter, err
		}
		filter.Party = &party
	}
	return filter, nil
}

// dateOr returns d, or now when d is unset
func dateOr(d, now time.Time) time.Time {
	if d.IsZero() {
		return now
	}
	return d
}

// method parses a validated payment method
func method(s string) ledger.PaymentMethod {
	return ledger.PaymentMethod(s)
}
