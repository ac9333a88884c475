package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ledger appends operations and maintains their invoice linkage.
// It never touches balances; projections read what it records.
type Ledger struct {
	repo OperationRepository
}

// New creates a ledger over the given repository
func New(repo OperationRepository) *Ledger {
	return &Ledger{repo: repo}
}

// Append records a new operation
func (l *Ledger) Append(ctx context.Context, op *Operation) error {
	if err := l.repo.Create(ctx, op); err != nil {
		return fmt.Errorf("append operation: %w", err)
	}
	return nil
}

// ForInvoice returns every operation linked to the invoice
func (l *Ledger) ForInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Operation, error) {
	ops, err := l.repo.FindByInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("load invoice operations: %w", err)
	}
	return ops, nil
}

// RemoveForInvoice deletes every operation linked to the invoice and returns them
func (l *Ledger) RemoveForInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Operation, error) {
	ops, err := l.ForInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := l.remove(ctx, tenantID, ops); err != nil {
		return nil, err
	}
	return ops, nil
}

// RemoveCreditSettlements deletes the credit_balance operations linked to the
// invoice, which hands the settled credit back to the party.
func (l *Ledger) RemoveCreditSettlements(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Operation, error) {
	ops, err := l.ForInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	settlements := make([]Operation, 0, len(ops))
	for _, op := range ops {
		if op.Method == MethodCreditBalance {
			settlements = append(settlements, op)
		}
	}
	if err := l.remove(ctx, tenantID, settlements); err != nil {
		return nil, err
	}
	return settlements, nil
}

// ReleaseResult describes what Release did to an invoice's operations
type ReleaseResult struct {
	Detached []Operation
	Removed  []Operation
}

// Release unties an invoice from the ledger without losing cash history:
// credit settlements are removed and cash movements are detached, so what the
// party already paid becomes credit held for it.
func (l *Ledger) Release(ctx context.Context, tenantID, invoiceID uuid.UUID, at time.Time) (*ReleaseResult, error) {
	removed, err := l.RemoveCreditSettlements(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	remaining, err := l.ForInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}

	result := &ReleaseResult{Removed: removed, Detached: make([]Operation, 0, len(remaining))}
	for i := range remaining {
		op := remaining[i]
		if err := op.Detach(at); err != nil {
			return nil, err
		}
		if err := l.repo.SaveWithLock(ctx, &op); err != nil {
			return nil, fmt.Errorf("detach operation %s: %w", op.ID, err)
		}
		result.Detached = append(result.Detached, op)
	}
	return result, nil
}

func (l *Ledger) remove(ctx context.Context, tenantID uuid.UUID, ops []Operation) error {
	if len(ops) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(ops))
	for i, op := range ops {
		ids[i] = op.ID
	}
	if err := l.repo.DeleteByIDs(ctx, tenantID, ids); err != nil {
		return fmt.Errorf("delete operations: %w", err)
	}
	return nil
}
