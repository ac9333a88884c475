package invoicing

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordStatus tracks whether a payment or adjustment still counts
type RecordStatus string

const (
	RecordActive   RecordStatus = "active"
	RecordReversed RecordStatus = "reversed"
)

// Payment is money applied to the invoice, stored as JSONB within the aggregate
type Payment struct {
	ID                 uuid.UUID            `json:"id"`
	Amount             decimal.Decimal      `json:"amount"`
	Date               time.Time            `json:"date"`
	Method             ledger.PaymentMethod `json:"method"`
	UsedSupplierCredit bool                 `json:"used_supplier_credit"`
	OperationID        uuid.UUID            `json:"operation_id"`
	Status             RecordStatus         `json:"status"`
	ReversedAt         *time.Time           `json:"reversed_at,omitempty"`
	ReversalReason     string               `json:"reversal_reason,omitempty"`
}

// IsActive returns true if the payment still counts toward AmountPaid
func (p *Payment) IsActive() bool {
	return p.Status == RecordActive
}

// IsCash returns true for payments that moved money, as opposed to credit settlement
func (p *Payment) IsCash() bool {
	return !p.UsedSupplierCredit && p.Method.MovesCash()
}

// MarkReversed marks the payment as no longer counting
func (p *Payment) MarkReversed(reason string, at time.Time) {
	p.Status = RecordReversed
	p.ReversedAt = &at
	p.ReversalReason = reason
}

// Payments is a slice of Payment that implements GORM Scanner/Valuer for JSONB storage
type Payments []Payment

// Value implements driver.Valuer interface for GORM to store as JSONB
func (p Payments) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (p *Payments) Scan(value interface{}) error {
	bytes, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(bytes) == 0 {
		*p = Payments{}
		return nil
	}
	return json.Unmarshal(bytes, p)
}

// ActiveTotal sums the payments that still count
func (p Payments) ActiveTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range p {
		if p[i].IsActive() {
			total = total.Add(p[i].Amount)
		}
	}
	return total
}

// Adjustment is a credit note or refund taken back from what was paid
type Adjustment struct {
	ID          uuid.UUID            `json:"id"`
	Kind        ledger.ReversalKind  `json:"kind"`
	Amount      decimal.Decimal      `json:"amount"`
	Method      ledger.PaymentMethod `json:"method"`
	Date        time.Time            `json:"date"`
	OperationID uuid.UUID            `json:"operation_id"`
	Reason      string               `json:"reason,omitempty"`
	Status      RecordStatus         `json:"status"`
	ReversedAt  *time.Time           `json:"reversed_at,omitempty"`
}

// IsActive returns true if the adjustment still counts
func (a *Adjustment) IsActive() bool {
	return a.Status == RecordActive
}

// Adjustments is a slice of Adjustment that implements GORM Scanner/Valuer for JSONB storage
type Adjustments []Adjustment

// Value implements driver.Valuer interface for GORM to store as JSONB
func (a Adjustments) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (a *Adjustments) Scan(value interface{}) error {
	bytes, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(bytes) == 0 {
		*a = Adjustments{}
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// ActiveTotal sums the adjustments that still count
func (a Adjustments) ActiveTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range a {
		if a[i].IsActive() {
			total = total.Add(a[i].Amount)
		}
	}
	return total
}
