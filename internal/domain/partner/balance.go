package partner

import (
	"github.com/erp/backoffice/internal/domain/invoicing"
	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// Balance is the projection of one party's position with the agency.
// For a client Debt is what the client owes; for a supplier it is what the
// agency owes. Credit is money already held for the party.
type Balance struct {
	Debt   decimal.Decimal
	Credit decimal.Decimal
}

// Equal compares both totals
func (b Balance) Equal(other Balance) bool {
	return b.Debt.Equal(other.Debt) && b.Credit.Equal(other.Credit)
}

// Sub returns the per-field difference b - other
func (b Balance) Sub(other Balance) Balance {
	return Balance{Debt: b.Debt.Sub(other.Debt), Credit: b.Credit.Sub(other.Credit)}
}

// ComputeBalance folds a party's invoices and ledger operations:
//
//	Debt   = Σ max(0, gross - paid) over sent, partially_paid and overdue invoices
//	Credit = ledger.CreditHeld(operations)
func ComputeBalance(invoices []invoicing.Invoice, ops []ledger.Operation) Balance {
	debt := decimal.Zero
	for i := range invoices {
		debt = debt.Add(invoices[i].OutstandingDebt())
	}
	return Balance{Debt: debt, Credit: ledger.CreditHeld(ops)}
}
