package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction tells whether money enters or leaves the agency
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// IsValid checks if the direction is known
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Opposite returns the reverse direction
func (d Direction) Opposite() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}

// Category is the business reason for a movement (closed set)
type Category string

const (
	CategoryInvoicePayment     Category = "invoice_payment"
	CategorySupplierPayment    Category = "supplier_payment"
	CategoryCreditNote         Category = "credit_note"
	CategoryRefund             Category = "refund"
	CategorySupplierPrepayment Category = "supplier_prepayment"
	CategoryExpense            Category = "expense"
	CategoryOtherIncome        Category = "other_income"
)

// IsValid checks if the category is part of the closed set
func (c Category) IsValid() bool {
	switch c {
	case CategoryInvoicePayment, CategorySupplierPayment, CategoryCreditNote, CategoryRefund,
		CategorySupplierPrepayment, CategoryExpense, CategoryOtherIncome:
		return true
	}
	return false
}

// IsFree reports categories that carry no balance meaning and may be
// recorded or re-categorised by hand in the cash register.
func (c Category) IsFree() bool {
	return c == CategoryExpense || c == CategoryOtherIncome
}

// PaymentMethod is how the money moved
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodTransfer PaymentMethod = "transfer"
	MethodCheque   PaymentMethod = "cheque"
	// MethodCreditBalance settles against credit already held for the party; no cash moves.
	MethodCreditBalance PaymentMethod = "credit_balance"
)

// IsValid checks if the method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCheque, MethodCreditBalance:
		return true
	}
	return false
}

// MovesCash is false only for credit settlement
func (m PaymentMethod) MovesCash() bool {
	return m.IsValid() && m != MethodCreditBalance
}

// CashMethods lists the methods that move money
func CashMethods() []PaymentMethod {
	return []PaymentMethod{MethodCash, MethodTransfer, MethodCheque}
}

// ReversalKind marks a compensating operation
type ReversalKind string

const (
	ReversalCreditNote ReversalKind = "credit_note"
	ReversalRefund     ReversalKind = "refund"
)

// IsValid checks if the reversal kind is known
func (k ReversalKind) IsValid() bool {
	return k == ReversalCreditNote || k == ReversalRefund
}

// Category returns the ledger category used for this kind of reversal
func (k ReversalKind) Category() Category {
	if k == ReversalRefund {
		return CategoryRefund
	}
	return CategoryCreditNote
}

// Metadata carries reversal and linkage annotations, stored as JSONB
type Metadata struct {
	ReversalOfInvoiceID   *uuid.UUID       `json:"reversal_of_invoice_id,omitempty"`
	ReversalKind          ReversalKind     `json:"reversal_kind,omitempty"`
	OriginalAmount        *decimal.Decimal `json:"original_amount,omitempty"`
	DetachedFromInvoiceID *uuid.UUID       `json:"detached_from_invoice_id,omitempty"`
	DetachedAt            *time.Time       `json:"detached_at,omitempty"`
}

// IsReversal reports a compensating operation
func (m Metadata) IsReversal() bool {
	return m.ReversalKind != ""
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (m Metadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Metadata: unsupported type")
	}

	if len(bytes) == 0 {
		*m = Metadata{}
		return nil
	}

	return json.Unmarshal(bytes, m)
}

// Operation is a cash-ledger entry. Amount, direction and method never change
// after creation; corrections are new compensating operations.
type Operation struct {
	shared.TenantAggregateRoot
	Direction   Direction
	Category    Category
	Method      PaymentMethod
	Amount      decimal.Decimal
	Date        time.Time
	InvoiceID   *uuid.UUID
	ClientID    *uuid.UUID
	SupplierID  *uuid.UUID
	Description string
	Reference   string
	Metadata    Metadata
}

// NewOperationInput holds everything needed to append an operation
type NewOperationInput struct {
	AgencyID    uuid.UUID
	CreatedBy   uuid.UUID
	Direction   Direction
	Category    Category
	Method      PaymentMethod
	Amount      decimal.Decimal
	Date        time.Time
	InvoiceID   *uuid.UUID
	Party       *shared.PartyRef
	Description string
	Reference   string
	Metadata    Metadata
}

// NewOperation validates input and builds an operation
func NewOperation(in NewOperationInput) (*Operation, error) {
	if in.AgencyID == uuid.Nil {
		return nil, shared.NewValidationError("AGENCY_REQUIRED", "agency id is required")
	}
	if !in.Direction.IsValid() {
		return nil, shared.NewValidationError("INVALID_DIRECTION", "direction %q is not valid", in.Direction)
	}
	if !in.Category.IsValid() {
		return nil, shared.NewValidationError("INVALID_CATEGORY", "category %q is not valid", in.Category)
	}
	if !in.Method.IsValid() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_METHOD", "payment method %q is not valid", in.Method)
	}
	if in.Amount.IsNegative() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "operation amount cannot be negative")
	}
	if in.Date.IsZero() {
		return nil, shared.NewValidationError("DATE_REQUIRED", "operation date is required")
	}
	if in.Metadata.ReversalKind != "" && !in.Metadata.ReversalKind.IsValid() {
		return nil, shared.NewValidationError("INVALID_REVERSAL_KIND", "reversal kind %q is not valid", in.Metadata.ReversalKind)
	}

	op := &Operation{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(in.AgencyID, in.CreatedBy),
		Direction:           in.Direction,
		Category:            in.Category,
		Method:              in.Method,
		Amount:              valueobject.RoundMoney(in.Amount),
		Date:                in.Date,
		InvoiceID:           in.InvoiceID,
		Description:         in.Description,
		Reference:           in.Reference,
		Metadata:            in.Metadata,
	}
	if in.Party != nil {
		if err := in.Party.Validate(); err != nil {
			return nil, err
		}
		op.ClientID, op.SupplierID = in.Party.IDs()
	}
	return op, nil
}

// Party returns the client or supplier the operation concerns, if any
func (o *Operation) Party() (shared.PartyRef, bool) {
	p, err := shared.PartyFromIDs(o.ClientID, o.SupplierID)
	if err != nil {
		return shared.PartyRef{}, false
	}
	return p, true
}

// IsLinked reports whether the operation is tied to an invoice
func (o *Operation) IsLinked() bool {
	return o.InvoiceID != nil && *o.InvoiceID != uuid.Nil
}

// IsLinkedTo reports whether the operation is tied to the given invoice
func (o *Operation) IsLinkedTo(invoiceID uuid.UUID) bool {
	return o.IsLinked() && *o.InvoiceID == invoiceID
}

// SignedAmount is +Amount for money in and -Amount for money out
func (o *Operation) SignedAmount() decimal.Decimal {
	if o.Direction == DirectionOut {
		return o.Amount.Neg()
	}
	return o.Amount
}

// EditInput lists the free-text fields of an unlinked operation. Nil means unchanged.
type EditInput struct {
	Description *string
	Reference   *string
	Date        *time.Time
	Category    *Category
}

// Edit changes free-text fields of an operation that is not linked to an invoice
func (o *Operation) Edit(in EditInput) error {
	if o.IsLinked() {
		return shared.NewTransitionError("OPERATION_LINKED", "operation %s is linked to invoice %s and cannot be edited", o.ID, *o.InvoiceID)
	}
	if in.Category != nil && *in.Category != o.Category {
		if !o.Category.IsFree() || !in.Category.IsFree() {
			return shared.NewValidationError("CATEGORY_NOT_EDITABLE",
				"category can only change between %s and %s, got %s to %s",
				CategoryExpense, CategoryOtherIncome, o.Category, *in.Category)
		}
		o.Category = *in.Category
	}
	if in.Date != nil {
		if in.Date.IsZero() {
			return shared.NewValidationError("DATE_REQUIRED", "operation date is required")
		}
		o.Date = *in.Date
	}
	if in.Description != nil {
		o.Description = *in.Description
	}
	if in.Reference != nil {
		o.Reference = *in.Reference
	}
	o.IncrementVersion()
	return nil
}

// Detach removes the invoice link and records where the operation came from.
// Only the ledger calls this, when an edit sends a settled invoice back to draft.
func (o *Operation) Detach(at time.Time) error {
	if !o.IsLinked() {
		return fmt.Errorf("operation %s is not linked to an invoice", o.ID)
	}
	from := *o.InvoiceID
	o.Metadata.DetachedFromInvoiceID = &from
	o.Metadata.DetachedAt = &at
	o.InvoiceID = nil
	o.IncrementVersion()
	return nil
}
