package ledger

import (
	"time"

	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordEntryRequest records an expense or other income in the cash register
type RecordEntryRequest struct {
	Category    string          `json:"category" validate:"required,oneof=expense other_income"`
	Method      string          `json:"method" validate:"required,oneof=cash transfer cheque"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description" validate:"required,max=500"`
	Reference   string          `json:"reference" validate:"max=100"`
}

// EditEntryRequest changes free-text fields of an unlinked entry. Nil means unchanged.
type EditEntryRequest struct {
	Description *string    `json:"description" validate:"omitempty,max=500"`
	Reference   *string    `json:"reference" validate:"omitempty,max=100"`
	Date        *time.Time `json:"date"`
	Category    *string    `json:"category" validate:"omitempty,oneof=expense other_income"`
}

// EntryListFilter narrows List
type EntryListFilter struct {
	From      *time.Time `json:"from"`
	To        *time.Time `json:"to"`
	InvoiceID *uuid.UUID `json:"invoice_id"`
	Category  string     `json:"category" validate:"omitempty,oneof=invoice_payment supplier_payment credit_note refund supplier_prepayment expense other_income"`
	Method    string     `json:"method" validate:"omitempty,oneof=cash transfer cheque credit_balance"`
	Direction string     `json:"direction" validate:"omitempty,oneof=in out"`
	Page      int        `json:"page" validate:"gte=0"`
	PageSize  int        `json:"page_size" validate:"gte=0,lte=100"`
}

func (f EntryListFilter) toDomain() ledger.OperationFilter {
	filter := ledger.OperationFilter{
		Filter: shared.Filter{
			Page:     f.Page,
			PageSize: f.PageSize,
			OrderBy:  "date",
			OrderDir: "desc",
		},
		From:      f.From,
		To:        f.To,
		InvoiceID: f.InvoiceID,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	if f.Category != "" {
		c := ledger.Category(f.Category)
		filter.Category = &c
	}
	if f.Method != "" {
		m := ledger.PaymentMethod(f.Method)
		filter.Method = &m
	}
	if f.Direction != "" {
		d := ledger.Direction(f.Direction)
		filter.Direction = &d
	}
	return filter
}

func (r EditEntryRequest) toDomain() ledger.EditInput {
	in := ledger.EditInput{
		Description: r.Description,
		Reference:   r.Reference,
		Date:        r.Date,
	}
	if r.Category != nil {
		c := ledger.Category(*r.Category)
		in.Category = &c
	}
	return in
}

// directionFor returns the direction implied by a free category
func directionFor(c ledger.Category) ledger.Direction {
	if c == ledger.CategoryOtherIncome {
		return ledger.DirectionIn
	}
	return ledger.DirectionOut
}
