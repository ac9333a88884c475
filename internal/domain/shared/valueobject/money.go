package valueobject

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places every stored amount carries.
// The agency books in a single currency, so amounts are plain decimals.
const MoneyScale int32 = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds an amount half away from zero to MoneyScale places
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// ParseAmount parses a decimal string and rounds it to MoneyScale places
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount string: %w", err)
	}
	return RoundMoney(d), nil
}

// MustParseAmount is ParseAmount for literals known to be valid
func MustParseAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MinAmount returns the smaller of two amounts
func MinAmount(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// PositivePart returns max(0, d)
func PositivePart(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// SumAmounts adds up a list of amounts
func SumAmounts(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Rate is a percentage in [0, 100], e.g. a flat VAT rate
type Rate struct {
	value decimal.Decimal
}

// ErrRateOutOfRange is returned when a percentage is outside [0, 100]
var ErrRateOutOfRange = errors.New("rate must be between 0 and 100")

// NewRate validates and builds a Rate
func NewRate(percent decimal.Decimal) (Rate, error) {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return Rate{}, ErrRateOutOfRange
	}
	return Rate{value: percent}, nil
}

// Percent returns the rate as a percentage value (20 for 20%)
func (r Rate) Percent() decimal.Decimal {
	return r.value
}

// IsZero returns true for a 0% rate
func (r Rate) IsZero() bool {
	return r.value.IsZero()
}

// ApplyTo returns amount * rate / 100, rounded to MoneyScale
func (r Rate) ApplyTo(amount decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(r.value).Div(hundred))
}

// Gross returns amount plus the rate applied to it
func (r Rate) Gross(net decimal.Decimal) decimal.Decimal {
	net = RoundMoney(net)
	return net.Add(r.ApplyTo(net))
}
