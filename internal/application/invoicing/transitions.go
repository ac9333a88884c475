package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/application/validation"
	"github.com/erp/backoffice/internal/application/view"
	"github.com/erp/backoffice/internal/domain/invoicing"
	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/valueobject"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Send issues a draft invoice. A supplier invoice immediately consumes the
// credit the agency holds for the supplier.
func (o *PaymentOrchestrator) Send(ctx context.Context, actor shared.Actor, invoiceID uuid.UUID) (*view.InvoiceView, error) {
	return o.mutateInvoice(ctx, actor, invoiceID, "send", func(ctx context.Context, u *unitOfWork, inv *invoicing.Invoice) error {
		now := o.now()
		if err := inv.Send(now); err != nil {
			return err
		}
		if err := o.lockParty(ctx, u, actor.AgencyID, inv.Owner()); err != nil {
			return err
		}
		if !inv.IsSupplierInvoice() {
			return nil
		}
		return o.settleFromCredit(ctx, u, actor, inv, now)
	})
}

// settleFromCredit pays a freshly sent supplier invoice out of held credit
func (o *PaymentOrchestrator) settleFromCredit(ctx context.Context, u *unitOfWork, actor shared.Actor, inv *invoicing.Invoice, now time.Time) error {
	owner := inv.Owner()
	credit, err := o.availableCredit(ctx, u, actor.AgencyID, owner)
	if err != nil {
		return err
	}
	settled := inv.CreditSettlement(credit)
	if !settled.IsPositive() {
		return nil
	}

	payment, err := inv.ApplyPayment(invoicing.PaymentInput{
		Amount:             settled,
		Method:             ledger.MethodCreditBalance,
		Date:               now,
		UsedSupplierCredit: true,
	})
	if err != nil {
		return err
	}
	invoiceID := inv.ID
	op, err := ledger.NewOperation(ledger.NewOperationInput{
		AgencyID:    actor.AgencyID,
		CreatedBy:   actor.UserID,
		Direction:   ledger.DirectionOut,
		Category:    ledger.CategorySupplierPayment,
		Method:      ledger.MethodCreditBalance,
		Amount:      settled,
		Date:        now,
		InvoiceID:   &invoiceID,
		Party:       &owner,
		Description: fmt.Sprintf("Supplier credit applied to %s", inv.SequenceNumber),
	})
	if err != nil {
		return err
	}
	payment.OperationID = op.ID
	if err := u.ledger.Append(ctx, op); err != nil {
		return err
	}

	o.logger.Info("Supplier credit settled",
		zap.String("invoice", inv.SequenceNumber),
		zap.String("settled", settled.StringFixed(2)),
		zap.String("status", inv.Status.String()),
	)
	return nil
}

// RecordPayment applies money to an issued invoice and records the matching
// ledger entry. Paying with credit_balance draws on credit held for the owner.
func (o *PaymentOrchestrator) RecordPayment(ctx context.Context, actor shared.Actor, invoiceID uuid.UUID, req RecordPaymentRequest) (*view.InvoiceView, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	amount := valueobject.RoundMoney(req.Amount)
	m := method(req.Method)

	return o.mutateInvoice(ctx, actor, invoiceID, "record_payment", func(ctx context.Context, u *unitOfWork, inv *invoicing.Invoice) error {
		date := dateOr(req.Date, o.now())
		owner := inv.Owner()
		invoiceRef := inv.ID

		payment, err := inv.ApplyPayment(invoicing.PaymentInput{Amount: amount, Method: m, Date: date})
		if err != nil {
			return err
		}
		if !m.MovesCash() {
			if err := o.lockParty(ctx, u, actor.AgencyID, owner); err != nil {
				return err
			}
			credit, err := o.availableCredit(ctx, u, actor.AgencyID, owner)
			if err != nil {
				return err
			}
			if credit.LessThan(amount) {
				return shared.NewValidationError("INSUFFICIENT_CREDIT",
					"%s holds %s credit, %s requested", owner, credit.StringFixed(2), amount.StringFixed(2))
			}
		}

		op, err := ledger.NewOperation(ledger.NewOperationInput{
			AgencyID:    actor.AgencyID,
			CreatedBy:   actor.UserID,
			Direction:   inv.PaymentDirection(),
			Category:    ledger.CategoryInvoicePayment,
			Method:      m,
			Amount:      amount,
			Date:        date,
			InvoiceID:   &invoiceRef,
			Party:       &owner,
			Description: fmt.Sprintf("Payment of %s", inv.SequenceNumber),
			Reference:   req.Reference,
		})
		if err != nil {
			return err
		}
		payment.OperationID = op.ID
		return u.ledger.Append(ctx, op)
	})
}

// RevertToDraft takes an issued invoice back to draft. Credit consumed by
// auto-settlement goes back to the supplier; cash payments block the move.
func (o *PaymentOrchestrator) RevertToDraft(ctx context.Context, actor shared.Actor, invoiceID uuid.UUID) (*view.InvoiceView, error) {
	return o.mutateInvoice(ctx, actor, invoiceID, "revert_to_draft", func(ctx context.Context, u *unitOfWork, inv *invoicing.Invoice) error {
		if err := inv.RevertToDraft(o.now()); err != nil {
			return err
		}
		removed, err := u.ledger.RemoveCreditSettlements(ctx, actor.AgencyID, inv.ID)
		if err != nil {
			return err
		}
		if len(removed) > 0 {
			o.logger.Info("Credit settlements released",
				zap.String("invoice", inv.SequenceNumber),
				zap.Int("operations", len(removed)),
			)
		}
		return nil
	})
}

// Cancel voids an issued invoice and deletes every ledger entry linked to it
func (o *PaymentOrchestrator) Cancel(ctx context.Context, actor shared.Actor, invoiceID uuid.UUID, req CancelInvoiceRequest) (*view.InvoiceView, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	reason := req.Reason
	if reason == "" {
		reason = "cancelled"
	}

	return o.mutateInvoice(ctx, actor, invoiceID, "cancel", func(ctx context.Context, u *unitOfWork, inv *invoicing.Invoice) error {
		if err := inv.Cancel(reason, o.now()); err != nil {
			return err
		}
		removed, err := u.ledger.RemoveForInvoice(ctx, actor.AgencyID, inv.ID)
		if err != nil {
			return err
		}
		o.logger.Info("Invoice operations deleted on cancel",
			zap.String("invoice", inv.SequenceNumber),
			zap.Int("operations", len(removed)),
		)
		return nil
	})
}

// IssueCreditNote reduces what was collected on an invoice
func (o *PaymentOrchestrator) IssueCreditNote(ctx context.Context, actor shared.Actor, invoiceID uuid.UUID, req AdjustmentRequest) (*view.InvoiceView, error) {
	return o.adjust(ctx, actor, invoiceID, ledger.ReversalCreditNote, req)
}

// Refund pays money back to the owner and restores the invoice's outstanding amount
func (o *PaymentOrchestrator) Refund(ctx context.Context, actor shared.Actor, invoiceID uuid.UUID, req AdjustmentRequest) (*view.InvoiceView, error) {
	return o.adjust(ctx, actor, invoiceID, ledger.ReversalRefund, req)
}

func (o *PaymentOrchestrator) adjust(ctx context.Context, actor shared.Actor, invoiceID uuid.UUID, kind ledger.ReversalKind, req AdjustmentRequest) (*view.InvoiceView, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	amount := valueobject.RoundMoney(req.Amount)
	m := method(req.Method)

	return o.mutateInvoice(ctx, actor, invoiceID, string(kind), func(ctx context.Context, u *unitOfWork, inv *invoicing.Invoice) error {
		date := dateOr(req.Date, o.now())
		owner := inv.Owner()
		paidBefore := inv.AmountPaid

		adjustment, err := inv.ApplyAdjustment(invoicing.AdjustmentInput{
			Kind:   kind,
			Amount: amount,
			Method: m,
			Date:   date,
			Reason: req.Reason,
		})
		if err != nil {
			return err
		}

		invoiceRef := inv.ID
		description := req.Reason
		if description == "" {
			description = fmt.Sprintf("%s on %s", kind, inv.SequenceNumber)
		}
		op, err := ledger.NewOperation(ledger.NewOperationInput{
			AgencyID:    actor.AgencyID,
			CreatedBy:   actor.UserID,
			Direction:   inv.PaymentDirection().Opposite(),
			Category:    kind.Category(),
			Method:      m,
			Amount:      amount,
			Date:        date,
			InvoiceID:   &invoiceRef,
			Party:       &owner,
			Description: description,
			Metadata: ledger.Metadata{
				ReversalOfInvoiceID: &invoiceRef,
				ReversalKind:        kind,
				OriginalAmount:      &paidBefore,
			},
		})
		if err != nil {
			return err
		}
		adjustment.OperationID = op.ID
		return u.ledger.Append(ctx, op)
	})
}

// SweepResult lists what an overdue sweep changed
type SweepResult struct {
	Checked int
	Marked  []view.InvoiceView
}

// SweepOverdue marks every sent invoice of the agency whose due date has
// passed. Each invoice is updated in its own transaction; failures are
// collected and returned together.
func (o *PaymentOrchestrator) SweepOverdue(ctx context.Context, actor shared.Actor) (*SweepResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "sweep_overdue")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrAgencyID, actor.AgencyID.String())

	if err := actor.Validate(); err != nil {
		return nil, err
	}

	now := o.now()
	y, mo, d := now.Date()
	today := time.Date(y, mo, d, 0, 0, 0, 0, now.Location())

	var candidates []invoicing.Invoice
	err := o.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		candidates, err = repos.Invoices().FindByStatusDueBefore(ctx, actor.AgencyID, []invoicing.Status{invoicing.StatusSent}, today)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list overdue candidates: %w", err)
	}

	result := &SweepResult{Checked: len(candidates)}
	var errs []error
	for i := range candidates {
		marked := false
		v, err := o.mutateInvoice(ctx, actor, candidates[i].ID, "mark_overdue", func(_ context.Context, _ *unitOfWork, inv *invoicing.Invoice) error {
			marked = inv.MarkOverdue(now)
			return nil
		})
		if err != nil {
			o.logger.Warn("Failed to mark invoice overdue",
				zap.String("invoice", candidates[i].SequenceNumber),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("invoice %s: %w", candidates[i].SequenceNumber, err))
			continue
		}
		if marked {
			result.Marked = append(result.Marked, *v)
		}
	}

	telemetry.SetAttribute(span, "marked", len(result.Marked))
	if len(errs) > 0 {
		err := errors.Join(errs...)
		telemetry.RecordError(span, err)
		return result, err
	}
	telemetry.SetOK(span)
	return result, nil
}
