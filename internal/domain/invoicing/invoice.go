package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is a billable document owed by exactly one client (money in) or
// owed to exactly one supplier (money out).
type Invoice struct {
	shared.TenantAggregateRoot
	SequenceNumber string
	ClientID       *uuid.UUID
	SupplierID     *uuid.UUID
	Status         Status
	LineItems      LineItems
	VATRate        decimal.Decimal
	AmountNet      decimal.Decimal
	AmountVAT      decimal.Decimal
	AmountGross    decimal.Decimal
	AmountPaid     decimal.Decimal
	Payments       Payments
	Adjustments    Adjustments
	IssueDate      time.Time
	DueDate        time.Time
	Notes          string
	SentAt         *time.Time
	PaidAt         *time.Time
	CancelledAt    *time.Time
	CancelReason   string
}

// NewInvoiceInput holds the caller-supplied fields of a new draft
type NewInvoiceInput struct {
	AgencyID       uuid.UUID
	CreatedBy      uuid.UUID
	SequenceNumber string
	Owner          shared.PartyRef
	Lines          LineItems
	VATRate        decimal.Decimal
	IssueDate      time.Time
	DueDate        time.Time
	Notes          string
}

// NewInvoice creates a draft. Drafts have no ledger or balance effect.
func NewInvoice(in NewInvoiceInput) (*Invoice, error) {
	if in.AgencyID == uuid.Nil {
		return nil, shared.NewValidationError("AGENCY_REQUIRED", "agency id is required")
	}
	if strings.TrimSpace(in.SequenceNumber) == "" {
		return nil, shared.NewValidationError("SEQUENCE_NUMBER_REQUIRED", "sequence number cannot be empty")
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(in.AgencyID, in.CreatedBy),
		SequenceNumber:      in.SequenceNumber,
		Status:              StatusDraft,
		AmountPaid:          decimal.Zero,
		Payments:            Payments{},
		Adjustments:         Adjustments{},
	}
	if err := inv.applyContent(in.Owner, in.Lines, in.VATRate, in.IssueDate, in.DueDate); err != nil {
		return nil, err
	}
	inv.Notes = in.Notes
	return inv, nil
}

func (inv *Invoice) applyContent(owner shared.PartyRef, lines LineItems, vatRate decimal.Decimal, issue, due time.Time) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if issue.IsZero() {
		return shared.NewValidationError("ISSUE_DATE_REQUIRED", "issue date is required")
	}
	if due.IsZero() {
		due = issue
	}
	if due.Before(issue) {
		return shared.NewValidationError("DUE_BEFORE_ISSUE", "due date %s is before issue date %s",
			due.Format(time.DateOnly), issue.Format(time.DateOnly))
	}
	amounts, err := ComputeAmounts(lines, vatRate)
	if err != nil {
		return err
	}

	inv.ClientID, inv.SupplierID = owner.IDs()
	if lines == nil {
		lines = LineItems{}
	}
	inv.LineItems = lines
	inv.VATRate = vatRate
	inv.AmountNet = amounts.Net
	inv.AmountVAT = amounts.VAT
	inv.AmountGross = amounts.Gross
	inv.IssueDate = issue
	inv.DueDate = due
	return nil
}

// Owner returns the client or supplier the invoice belongs to
func (inv *Invoice) Owner() shared.PartyRef {
	p, _ := shared.PartyFromIDs(inv.ClientID, inv.SupplierID)
	return p
}

// IsSupplierInvoice returns true when the agency owes the money
func (inv *Invoice) IsSupplierInvoice() bool {
	return inv.Owner().IsSupplier()
}

// PaymentDirection is the way money moves when this invoice is paid
func (inv *Invoice) PaymentDirection() ledger.Direction {
	if inv.IsSupplierInvoice() {
		return ledger.DirectionOut
	}
	return ledger.DirectionIn
}

// Remaining is what is left to pay
func (inv *Invoice) Remaining() decimal.Decimal {
	return inv.AmountGross.Sub(inv.AmountPaid)
}

// OutstandingDebt is this invoice's share of its owner's debt
func (inv *Invoice) OutstandingDebt() decimal.Decimal {
	if !inv.Status.IsOutstanding() {
		return decimal.Zero
	}
	return valueobject.PositivePart(inv.Remaining())
}

// IsPastDue reports whether the due date lies on an earlier calendar day than now
func (inv *Invoice) IsPastDue(now time.Time) bool {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	dy, dm, dd := inv.DueDate.In(now.Location()).Date()
	due := time.Date(dy, dm, dd, 0, 0, 0, 0, now.Location())
	return today.After(due)
}

func (inv *Invoice) moveTo(next Status) error {
	if !inv.Status.CanTransitionTo(next) {
		return shared.NewTransitionError("INVALID_STATUS_TRANSITION",
			"invoice %s cannot move from %s to %s", inv.SequenceNumber, inv.Status, next)
	}
	inv.Status = next
	return nil
}

// Send issues a draft. Balance effects are applied by the caller.
func (inv *Invoice) Send(now time.Time) error {
	if inv.Status != StatusDraft {
		return shared.NewTransitionError("INVOICE_NOT_DRAFT",
			"invoice %s is %s; only draft invoices can be sent", inv.SequenceNumber, inv.Status)
	}
	if err := inv.Owner().Validate(); err != nil {
		return err
	}
	if len(inv.LineItems) == 0 {
		return shared.NewValidationError("LINE_ITEMS_REQUIRED", "invoice %s has no line items", inv.SequenceNumber)
	}
	if !inv.AmountGross.IsPositive() {
		return shared.NewValidationError("AMOUNT_NOT_POSITIVE", "invoice %s has a zero gross amount", inv.SequenceNumber)
	}
	if err := inv.moveTo(StatusSent); err != nil {
		return err
	}
	inv.SentAt = &now
	inv.IncrementVersion()
	return nil
}

// CreditSettlement is how much of the available credit a freshly sent
// supplier invoice absorbs: min(credit, remaining).
func (inv *Invoice) CreditSettlement(credit decimal.Decimal) decimal.Decimal {
	if !inv.IsSupplierInvoice() || inv.Status != StatusSent {
		return decimal.Zero
	}
	return valueobject.MinAmount(valueobject.PositivePart(credit), inv.Remaining())
}

// PaymentInput describes money applied to the invoice
type PaymentInput struct {
	Amount             decimal.Decimal
	Method             ledger.PaymentMethod
	Date               time.Time
	OperationID        uuid.UUID
	UsedSupplierCredit bool
}

// ApplyPayment records a payment and derives paid/partially_paid from the totals
func (inv *Invoice) ApplyPayment(in PaymentInput) (*Payment, error) {
	if !inv.Status.CanReceivePayment() {
		return nil, shared.NewTransitionError("INVOICE_NOT_PAYABLE",
			"cannot record a payment on invoice %s in %s status", inv.SequenceNumber, inv.Status)
	}
	if !in.Amount.IsPositive() {
		return nil, shared.NewValidationError("AMOUNT_NOT_POSITIVE", "payment amount must be positive, got %s", in.Amount)
	}
	if in.Amount.GreaterThan(inv.Remaining()) {
		return nil, shared.NewValidationError("AMOUNT_EXCEEDS_REMAINING",
			"payment amount %s exceeds remaining amount %s", in.Amount.StringFixed(2), inv.Remaining().StringFixed(2))
	}
	if !in.Method.IsValid() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_METHOD", "payment method %q is not valid", in.Method)
	}

	next := StatusPartiallyPaid
	paid := inv.AmountPaid.Add(in.Amount)
	if paid.Equal(inv.AmountGross) {
		next = StatusPaid
	}
	if err := inv.moveTo(next); err != nil {
		return nil, err
	}

	payment := Payment{
		ID:                 uuid.New(),
		Amount:             in.Amount,
		Date:               in.Date,
		Method:             in.Method,
		UsedSupplierCredit: in.UsedSupplierCredit,
		OperationID:        in.OperationID,
		Status:             RecordActive,
	}
	inv.Payments = append(inv.Payments, payment)
	inv.AmountPaid = paid
	if next == StatusPaid {
		at := in.Date
		inv.PaidAt = &at
	}
	inv.IncrementVersion()
	return &inv.Payments[len(inv.Payments)-1], nil
}

// HasCashMovements reports active cash payments, credit notes or refunds.
// Credit settlements do not count.
func (inv *Invoice) HasCashMovements() bool {
	for i := range inv.Payments {
		if inv.Payments[i].IsActive() && inv.Payments[i].IsCash() {
			return true
		}
	}
	for i := range inv.Adjustments {
		if inv.Adjustments[i].IsActive() {
			return true
		}
	}
	return false
}

// RevertToDraft takes an issued invoice back to draft. It refuses while
// cash has been recorded against the invoice.
func (inv *Invoice) RevertToDraft(now time.Time) error {
	if !inv.Status.IsIssued() {
		return shared.NewTransitionError("INVOICE_NOT_REVERTIBLE",
			"invoice %s is %s and cannot be reverted to draft", inv.SequenceNumber, inv.Status)
	}
	if inv.HasCashMovements() {
		return shared.NewTransitionError("INVOICE_HAS_PAYMENTS",
			"invoice %s has recorded payments and cannot be reverted to draft", inv.SequenceNumber)
	}
	return inv.resetTo(StatusDraft, "reverted to draft", now)
}

// ForceDraft takes an issued invoice back to draft whatever it has recorded.
// Used before an edit; a draft is left untouched.
func (inv *Invoice) ForceDraft(reason string, now time.Time) error {
	if inv.Status == StatusDraft {
		return nil
	}
	if !inv.Status.IsIssued() {
		return shared.NewTransitionError("INVOICE_NOT_EDITABLE",
			"invoice %s is %s and cannot be edited", inv.SequenceNumber, inv.Status)
	}
	return inv.resetTo(StatusDraft, reason, now)
}

// Cancel voids an issued invoice. Cancelled is terminal.
func (inv *Invoice) Cancel(reason string, now time.Time) error {
	if !inv.Status.IsIssued() {
		hint := ""
		if inv.Status == StatusDraft {
			hint = "; delete the draft instead"
		}
		return shared.NewTransitionError("INVOICE_NOT_CANCELLABLE",
			"invoice %s is %s and cannot be cancelled%s", inv.SequenceNumber, inv.Status, hint)
	}
	if err := inv.resetTo(StatusCancelled, reason, now); err != nil {
		return err
	}
	inv.CancelledAt = &now
	inv.CancelReason = reason
	return nil
}

func (inv *Invoice) resetTo(next Status, reason string, now time.Time) error {
	if err := inv.moveTo(next); err != nil {
		return err
	}
	for i := range inv.Payments {
		if inv.Payments[i].IsActive() {
			inv.Payments[i].MarkReversed(reason, now)
		}
	}
	for i := range inv.Adjustments {
		if inv.Adjustments[i].IsActive() {
			inv.Adjustments[i].Status = RecordReversed
			inv.Adjustments[i].ReversedAt = &now
		}
	}
	inv.AmountPaid = decimal.Zero
	inv.SentAt = nil
	inv.PaidAt = nil
	inv.IncrementVersion()
	return nil
}

// AdjustmentInput describes a credit note or refund
type AdjustmentInput struct {
	Kind        ledger.ReversalKind
	Amount      decimal.Decimal
	Method      ledger.PaymentMethod
	Date        time.Time
	OperationID uuid.UUID
	Reason      string
}

// ApplyAdjustment takes amount back from what was paid and derives the new status
func (inv *Invoice) ApplyAdjustment(in AdjustmentInput) (*Adjustment, error) {
	if !inv.Status.IsIssued() {
		return nil, shared.NewTransitionError("INVOICE_NOT_ADJUSTABLE",
			"cannot issue a %s on invoice %s in %s status", in.Kind, inv.SequenceNumber, inv.Status)
	}
	if !in.Kind.IsValid() {
		return nil, shared.NewValidationError("INVALID_REVERSAL_KIND", "reversal kind %q is not valid", in.Kind)
	}
	if !in.Amount.IsPositive() {
		return nil, shared.NewValidationError("AMOUNT_NOT_POSITIVE", "%s amount must be positive, got %s", in.Kind, in.Amount)
	}
	if in.Amount.GreaterThan(inv.AmountPaid) {
		return nil, shared.NewValidationError("AMOUNT_EXCEEDS_PAID",
			"%s amount %s exceeds paid amount %s", in.Kind, in.Amount.StringFixed(2), inv.AmountPaid.StringFixed(2))
	}
	if !in.Method.MovesCash() {
		return nil, shared.NewValidationError("PAYMENT_METHOD_NOT_ALLOWED", "payment method %q is not allowed for a %s", in.Method, in.Kind)
	}

	paid := inv.AmountPaid.Sub(in.Amount)
	next := StatusPartiallyPaid
	if paid.IsZero() {
		next = StatusSent
		if inv.IsPastDue(in.Date) {
			next = StatusOverdue
		}
	}
	if err := inv.moveTo(next); err != nil {
		return nil, err
	}

	adj := Adjustment{
		ID:          uuid.New(),
		Kind:        in.Kind,
		Amount:      in.Amount,
		Method:      in.Method,
		Date:        in.Date,
		OperationID: in.OperationID,
		Reason:      in.Reason,
		Status:      RecordActive,
	}
	inv.Adjustments = append(inv.Adjustments, adj)
	inv.AmountPaid = paid
	inv.PaidAt = nil
	inv.IncrementVersion()
	return &inv.Adjustments[len(inv.Adjustments)-1], nil
}

// MarkOverdue moves a sent invoice past its due date to overdue
func (inv *Invoice) MarkOverdue(now time.Time) bool {
	if inv.Status != StatusSent || !inv.IsPastDue(now) {
		return false
	}
	inv.Status = StatusOverdue
	inv.IncrementVersion()
	return true
}

// EditInput is the full new content of a draft
type EditInput struct {
	Owner     shared.PartyRef
	Lines     LineItems
	VATRate   decimal.Decimal
	IssueDate time.Time
	DueDate   time.Time
	Notes     *string
}

// Edit replaces the content of a draft and recomputes its amounts
func (inv *Invoice) Edit(in EditInput) error {
	if inv.Status != StatusDraft {
		return shared.NewTransitionError("INVOICE_NOT_DRAFT",
			"invoice %s is %s; only drafts can be edited in place", inv.SequenceNumber, inv.Status)
	}
	if err := inv.applyContent(in.Owner, in.Lines, in.VATRate, in.IssueDate, in.DueDate); err != nil {
		return err
	}
	if in.Notes != nil {
		inv.Notes = *in.Notes
	}
	inv.IncrementVersion()
	return nil
}

// EnsureDeletable refuses to delete a paid invoice
func (inv *Invoice) EnsureDeletable() error {
	if inv.Status == StatusPaid {
		return shared.NewTransitionError("INVOICE_PAID",
			"invoice %s is paid and cannot be deleted", inv.SequenceNumber)
	}
	return nil
}

// Violations lists every internal inconsistency of the document. Empty means healthy.
func (inv *Invoice) Violations() []string {
	var problems []string
	if _, err := shared.PartyFromIDs(inv.ClientID, inv.SupplierID); err != nil {
		problems = append(problems, err.Error())
	}
	if inv.AmountPaid.IsNegative() || inv.AmountPaid.GreaterThan(inv.AmountGross) {
		problems = append(problems, fmt.Sprintf("amount paid %s outside [0, %s]",
			inv.AmountPaid.StringFixed(2), inv.AmountGross.StringFixed(2)))
	}
	expected := inv.Payments.ActiveTotal().Sub(inv.Adjustments.ActiveTotal())
	if !expected.Equal(inv.AmountPaid) {
		problems = append(problems, fmt.Sprintf("amount paid %s disagrees with payments net of adjustments %s",
			inv.AmountPaid.StringFixed(2), expected.StringFixed(2)))
	}
	if amounts, err := ComputeAmounts(inv.LineItems, inv.VATRate); err == nil && !amounts.Gross.Equal(inv.AmountGross) {
		problems = append(problems, fmt.Sprintf("gross amount %s disagrees with line items %s",
			inv.AmountGross.StringFixed(2), amounts.Gross.StringFixed(2)))
	}
	switch inv.Status {
	case StatusPaid:
		if !inv.AmountPaid.Equal(inv.AmountGross) {
			problems = append(problems, "status paid but amount paid is below gross")
		}
	case StatusPartiallyPaid:
		if !inv.AmountPaid.IsPositive() || !inv.AmountPaid.LessThan(inv.AmountGross) {
			problems = append(problems, "status partially_paid but amount paid is not strictly between 0 and gross")
		}
	case StatusDraft, StatusCancelled:
		if !inv.AmountPaid.IsZero() {
			problems = append(problems, fmt.Sprintf("status %s but amount paid is not zero", inv.Status))
		}
	}
	return problems
}
