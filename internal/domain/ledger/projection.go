package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditHeld folds a party's operations into the credit the agency holds for it.
//
//	+ supplier prepayments
//	+ detached cash movements (payments count up, credit notes and refunds down)
//	- credit_balance settlements still linked to an invoice
func CreditHeld(ops []Operation) decimal.Decimal {
	credit := decimal.Zero
	for _, op := range ops {
		switch {
		case op.Category == CategorySupplierPrepayment:
			credit = credit.Add(op.Amount)
		case op.Metadata.DetachedFromInvoiceID != nil && op.Method.MovesCash():
			if op.Metadata.IsReversal() {
				credit = credit.Sub(op.Amount)
			} else {
				credit = credit.Add(op.Amount)
			}
		case op.Method == MethodCreditBalance && op.IsLinked():
			credit = credit.Sub(op.Amount)
		}
	}
	return credit
}

// CashPosition is the net cash held per payment method at a point in time
type CashPosition struct {
	AsOf     time.Time
	ByMethod map[PaymentMethod]decimal.Decimal
	In       decimal.Decimal
	Out      decimal.Decimal
}

// Net returns total money in minus total money out
func (p CashPosition) Net() decimal.Decimal {
	return p.In.Sub(p.Out)
}

// ComputeCashPosition folds operations dated on or before asOf. Credit
// settlements are ignored since they move no money.
func ComputeCashPosition(ops []Operation, asOf time.Time) CashPosition {
	pos := CashPosition{
		AsOf:     asOf,
		ByMethod: make(map[PaymentMethod]decimal.Decimal, 3),
		In:       decimal.Zero,
		Out:      decimal.Zero,
	}
	for _, m := range CashMethods() {
		pos.ByMethod[m] = decimal.Zero
	}
	for _, op := range ops {
		if !op.Method.MovesCash() || op.Date.After(asOf) {
			continue
		}
		if op.Direction == DirectionIn {
			pos.In = pos.In.Add(op.Amount)
		} else {
			pos.Out = pos.Out.Add(op.Amount)
		}
		pos.ByMethod[op.Method] = pos.ByMethod[op.Method].Add(op.SignedAmount())
	}
	return pos
}
