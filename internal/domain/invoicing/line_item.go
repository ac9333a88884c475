package invoicing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LineItem is one billed service (flight, hotel night, transfer...)
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// NewLineItem validates a line and computes its total
func NewLineItem(description string, quantity, unitPrice decimal.Decimal) (LineItem, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return LineItem{}, shared.NewValidationError("LINE_DESCRIPTION_REQUIRED", "line item description cannot be empty")
	}
	if !quantity.IsPositive() {
		return LineItem{}, shared.NewValidationError("LINE_QUANTITY_NOT_POSITIVE", "line item quantity must be positive, got %s", quantity)
	}
	if unitPrice.IsNegative() {
		return LineItem{}, shared.NewValidationError("LINE_PRICE_NEGATIVE", "line item unit price cannot be negative, got %s", unitPrice)
	}
	return LineItem{
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Total:       valueobject.RoundMoney(quantity.Mul(unitPrice)),
	}, nil
}

// LineItems is a slice of LineItem that implements GORM Scanner/Valuer for JSONB storage
type LineItems []LineItem

// Net sums the line totals
func (l LineItems) Net() decimal.Decimal {
	net := decimal.Zero
	for _, item := range l {
		net = net.Add(item.Total)
	}
	return net
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (l *LineItems) Scan(value interface{}) error {
	bytes, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(bytes) == 0 {
		*l = LineItems{}
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// Amounts are the server-computed totals of an invoice
type Amounts struct {
	Net   decimal.Decimal
	VAT   decimal.Decimal
	Gross decimal.Decimal
}

// ComputeAmounts prices the lines with a flat VAT rate. Totals sent by a
// caller are never used; this is the only place amounts come from.
func ComputeAmounts(lines LineItems, vatRate decimal.Decimal) (Amounts, error) {
	rate, err := valueobject.NewRate(vatRate)
	if err != nil {
		return Amounts{}, shared.NewValidationError("INVALID_VAT_RATE", "vat rate must be between 0 and 100, got %s", vatRate)
	}
	net := valueobject.RoundMoney(lines.Net())
	vat := rate.ApplyTo(net)
	return Amounts{Net: net, VAT: vat, Gross: net.Add(vat)}, nil
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("failed to scan JSON column: unsupported type")
	}
}
