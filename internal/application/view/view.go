// Package view shapes domain objects into the read models handed to callers.
// Every outward representation of an invoice, operation or party balance is
// built here and nowhere else.
package view

import (
	"time"

	"github.com/erp/backoffice/internal/domain/invoicing"
	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/erp/backoffice/internal/domain/partner"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Money renders an amount with two decimals
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// LineItemView is the read model of a line item
type LineItemView struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Total       string `json:"total"`
}

// PaymentView is the read model of a payment
type PaymentView struct {
	ID                 uuid.UUID `json:"id"`
	Amount             string    `json:"amount"`
	Date               time.Time `json:"date"`
	Method             string    `json:"method"`
	UsedSupplierCredit bool      `json:"used_supplier_credit"`
	OperationID        uuid.UUID `json:"operation_id"`
	Status             string    `json:"status"`
	ReversalReason     string    `json:"reversal_reason,omitempty"`
}

// AdjustmentView is the read model of a credit note or refund
type AdjustmentView struct {
	ID          uuid.UUID `json:"id"`
	Kind        string    `json:"kind"`
	Amount      string    `json:"amount"`
	Method      string    `json:"method"`
	Date        time.Time `json:"date"`
	OperationID uuid.UUID `json:"operation_id"`
	Reason      string    `json:"reason,omitempty"`
	Status      string    `json:"status"`
}

// InvoiceView is the read-only invoice handed to UI, PDF and email layers
type InvoiceView struct {
	ID              uuid.UUID        `json:"id"`
	AgencyID        uuid.UUID        `json:"agency_id"`
	SequenceNumber  string           `json:"sequence_number"`
	OwnerKind       string           `json:"owner_kind"`
	OwnerID         uuid.UUID        `json:"owner_id"`
	Status          string           `json:"status"`
	LineItems       []LineItemView   `json:"line_items"`
	VATRate         string           `json:"vat_rate"`
	AmountNet       string           `json:"amount_net"`
	AmountVAT       string           `json:"amount_vat"`
	AmountGross     string           `json:"amount_gross"`
	AmountPaid      string           `json:"amount_paid"`
	AmountRemaining string           `json:"amount_remaining"`
	Payments        []PaymentView    `json:"payments"`
	Adjustments     []AdjustmentView `json:"adjustments"`
	IssueDate       time.Time        `json:"issue_date"`
	DueDate         time.Time        `json:"due_date"`
	Notes           string           `json:"notes,omitempty"`
	SentAt          *time.Time       `json:"sent_at,omitempty"`
	PaidAt          *time.Time       `json:"paid_at,omitempty"`
	CancelledAt     *time.Time       `json:"cancelled_at,omitempty"`
	CancelReason    string           `json:"cancel_reason,omitempty"`
	Version         int              `json:"version"`
}

// OperationView is the read-only ledger entry handed to reporting and audit layers
type OperationView struct {
	ID                    uuid.UUID  `json:"id"`
	AgencyID              uuid.UUID  `json:"agency_id"`
	Direction             string     `json:"direction"`
	Category              string     `json:"category"`
	PaymentMethod         string     `json:"payment_method"`
	Amount                string     `json:"amount"`
	Date                  time.Time  `json:"date"`
	InvoiceID             *uuid.UUID `json:"invoice_id,omitempty"`
	ClientID              *uuid.UUID `json:"client_id,omitempty"`
	SupplierID            *uuid.UUID `json:"supplier_id,omitempty"`
	Description           string     `json:"description,omitempty"`
	Reference             string     `json:"reference,omitempty"`
	CreatedBy             *uuid.UUID `json:"created_by,omitempty"`
	ReversalOfInvoiceID   *uuid.UUID `json:"reversal_of_invoice_id,omitempty"`
	ReversalKind          string     `json:"reversal_kind,omitempty"`
	OriginalAmount        string     `json:"original_amount,omitempty"`
	DetachedFromInvoiceID *uuid.UUID `json:"detached_from_invoice_id,omitempty"`
}

// ClientBalanceView is a client's cached position
type ClientBalanceView struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Balance       string     `json:"balance"`
	CreditBalance string     `json:"credit_balance"`
	RefreshedAt   *time.Time `json:"refreshed_at,omitempty"`
}

// SupplierBalanceView is a supplier's cached position
type SupplierBalanceView struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	DebtOwedByAgency   string     `json:"debt_owed_by_agency"`
	CreditOwedToAgency string     `json:"credit_owed_to_agency"`
	RefreshedAt        *time.Time `json:"refreshed_at,omitempty"`
}

// BalanceView is a debt/credit pair
type BalanceView struct {
	Debt   string `json:"debt"`
	Credit string `json:"credit"`
}

// CashPositionView is the cash register position
type CashPositionView struct {
	AsOf     time.Time         `json:"as_of"`
	In       string            `json:"in"`
	Out      string            `json:"out"`
	Net      string            `json:"net"`
	ByMethod map[string]string `json:"by_method"`
}

// Builder builds every read model. It is stateless and safe for concurrent use.
type Builder struct{}

// NewBuilder creates a view builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Invoice builds the invoice read model
func (b *Builder) Invoice(inv *invoicing.Invoice) InvoiceView {
	owner := inv.Owner()
	v := InvoiceView{
		ID:              inv.ID,
		AgencyID:        inv.TenantID,
		SequenceNumber:  inv.SequenceNumber,
		OwnerKind:       string(owner.Kind),
		OwnerID:         owner.ID,
		Status:          inv.Status.String(),
		LineItems:       make([]LineItemView, 0, len(inv.LineItems)),
		VATRate:         inv.VATRate.String(),
		AmountNet:       Money(inv.AmountNet),
		AmountVAT:       Money(inv.AmountVAT),
		AmountGross:     Money(inv.AmountGross),
		AmountPaid:      Money(inv.AmountPaid),
		AmountRemaining: Money(inv.Remaining()),
		Payments:        make([]PaymentView, 0, len(inv.Payments)),
		Adjustments:     make([]AdjustmentView, 0, len(inv.Adjustments)),
		IssueDate:       inv.IssueDate,
		DueDate:         inv.DueDate,
		Notes:           inv.Notes,
		SentAt:          inv.SentAt,
		PaidAt:          inv.PaidAt,
		CancelledAt:     inv.CancelledAt,
		CancelReason:    inv.CancelReason,
		Version:         inv.Version,
	}
	for _, item := range inv.LineItems {
		v.LineItems = append(v.LineItems, LineItemView{
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			UnitPrice:   Money(item.UnitPrice),
			Total:       Money(item.Total),
		})
	}
	for _, p := range inv.Payments {
		v.Payments = append(v.Payments, PaymentView{
			ID:                 p.ID,
			Amount:             Money(p.Amount),
			Date:               p.Date,
			Method:             string(p.Method),
			UsedSupplierCredit: p.UsedSupplierCredit,
			OperationID:        p.OperationID,
			Status:             string(p.Status),
			ReversalReason:     p.ReversalReason,
		})
	}
	for _, a := range inv.Adjustments {
		v.Adjustments = append(v.Adjustments, AdjustmentView{
			ID:          a.ID,
			Kind:        string(a.Kind),
			Amount:      Money(a.Amount),
			Method:      string(a.Method),
			Date:        a.Date,
			OperationID: a.OperationID,
			Reason:      a.Reason,
			Status:      string(a.Status),
		})
	}
	return v
}

// Invoices builds a list of invoice read models
func (b *Builder) Invoices(invoices []invoicing.Invoice) []InvoiceView {
	views := make([]InvoiceView, len(invoices))
	for i := range invoices {
		views[i] = b.Invoice(&invoices[i])
	}
	return views
}

// Operation builds the ledger entry read model
func (b *Builder) Operation(op *ledger.Operation) OperationView {
	v := OperationView{
		ID:                    op.ID,
		AgencyID:              op.TenantID,
		Direction:             string(op.Direction),
		Category:              string(op.Category),
		PaymentMethod:         string(op.Method),
		Amount:                Money(op.Amount),
		Date:                  op.Date,
		InvoiceID:             op.InvoiceID,
		ClientID:              op.ClientID,
		SupplierID:            op.SupplierID,
		Description:           op.Description,
		Reference:             op.Reference,
		CreatedBy:             op.CreatedBy,
		ReversalOfInvoiceID:   op.Metadata.ReversalOfInvoiceID,
		ReversalKind:          string(op.Metadata.ReversalKind),
		DetachedFromInvoiceID: op.Metadata.DetachedFromInvoiceID,
	}
	if op.Metadata.OriginalAmount != nil {
		v.OriginalAmount = Money(*op.Metadata.OriginalAmount)
	}
	return v
}

// Operations builds a list of ledger entry read models
func (b *Builder) Operations(ops []ledger.Operation) []OperationView {
	views := make([]OperationView, len(ops))
	for i := range ops {
		views[i] = b.Operation(&ops[i])
	}
	return views
}

// Client builds a client's balance read model
func (b *Builder) Client(c *partner.Client) ClientBalanceView {
	return ClientBalanceView{
		ID:            c.ID,
		Name:          c.Name,
		Balance:       Money(c.Balance),
		CreditBalance: Money(c.CreditBalance),
		RefreshedAt:   c.BalanceRefreshedAt,
	}
}

// Supplier builds a supplier's balance read model
func (b *Builder) Supplier(s *partner.Supplier) SupplierBalanceView {
	return SupplierBalanceView{
		ID:                 s.ID,
		Name:               s.Name,
		DebtOwedByAgency:   Money(s.DebtOwedByAgency),
		CreditOwedToAgency: Money(s.CreditOwedToAgency),
		RefreshedAt:        s.BalanceRefreshedAt,
	}
}

// Balance builds a debt/credit pair
func (b *Builder) Balance(bal partner.Balance) BalanceView {
	return BalanceView{Debt: Money(bal.Debt), Credit: Money(bal.Credit)}
}

// CashPosition builds the cash register position
func (b *Builder) CashPosition(pos ledger.CashPosition) CashPositionView {
	v := CashPositionView{
		AsOf:     pos.AsOf,
		In:       Money(pos.In),
		Out:      Money(pos.Out),
		Net:      Money(pos.Net()),
		ByMethod: make(map[string]string, len(pos.ByMethod)),
	}
	for method, amount := range pos.ByMethod {
		v.ByMethod[string(method)] = Money(amount)
	}
	return v
}
