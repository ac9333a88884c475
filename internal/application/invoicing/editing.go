package invoicing

import (
	"context"
	"fmt"

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

// sequences returns the allocator used inside the unit of work
func (o *PaymentOrchestrator) sequences(u *unitOfWork) invoicing.SequenceAllocator {
	if o.allocator != nil {
		return o.allocator
	}
	return u.repos.Sequences()
}

// resyncSequence moves a counter that fell behind the stored numbers. It
// commits on its own because the failed attempt rolled back its increment.
func (o *PaymentOrchestrator) resyncSequence(ctx context.Context, agencyID uuid.UUID, year int) error {
	err := o.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, ok := o.sequences(newUnitOfWork(repos)).(invoicing.SequenceResyncer)
		if !ok {
			return nil
		}
		return r.Resync(ctx, agencyID, year)
	})
	if err != nil {
		return fmt.Errorf("resync sequence counter: %w", err)
	}
	return nil
}

// CreateInvoice creates a draft with amounts computed from its line items and
// a fresh sequence number. A number taken concurrently is retried with the
// next one a bounded number of times.
func (o *PaymentOrchestrator) CreateInvoice(ctx context.Context, actor shared.Actor, req CreateInvoiceRequest) (*view.InvoiceView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgencyID, actor.AgencyID.String(),
		telemetry.SpanAttrActorID, actor.UserID.String(),
	)

	if err := actor.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	owner, err := req.owner()
	if err != nil {
		return nil, err
	}
	lines, err := req.lineItems()
	if err != nil {
		return nil, err
	}
	year := req.IssueDate.Year()

	var created *view.InvoiceView
	for attempt := 1; ; attempt++ {
		telemetry.SetAttribute(span, telemetry.SpanAttrAttempt, attempt)
		err := o.within(ctx, actor, func(ctx context.Context, u *unitOfWork) error {
			if err := requireParty(ctx, u.repos, actor.AgencyID, owner); err != nil {
				return err
			}
			n, err := o.sequences(u).Next(ctx, actor.AgencyID, year)
			if err != nil {
				return fmt.Errorf("allocate sequence number: %w", err)
			}
			inv, err := invoicing.NewInvoice(invoicing.NewInvoiceInput{
				AgencyID:       actor.AgencyID,
				CreatedBy:      actor.UserID,
				SequenceNumber: invoicing.FormatSequenceNumber(o.cfg.SequencePrefix, year, n),
				Owner:          owner,
				Lines:          lines,
				VATRate:        req.VATRate,
				IssueDate:      req.IssueDate,
				DueDate:        req.DueDate,
				Notes:          req.Notes,
			})
			if err != nil {
				return err
			}
			if err := u.repos.Invoices().Create(ctx, inv); err != nil {
				return err
			}
			v := o.views.Invoice(inv)
			created = &v
			return nil
		})
		if err == nil {
			break
		}
		if !invoicing.IsDuplicateSequence(err) {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if attempt >= o.cfg.MaxSequenceAttempts {
			err = shared.NewConcurrencyError(invoicing.CodeDuplicateSequence,
				"no free sequence number for agency %s in %d after %d attempts", actor.AgencyID, year, attempt)
			telemetry.RecordError(span, err)
			return nil, err
		}
		o.logger.Warn("Sequence number taken, retrying",
			zap.String("agency_id", actor.AgencyID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if err := o.resyncSequence(ctx, actor.AgencyID, year); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, created.ID.String(),
		telemetry.SpanAttrSequenceNumber, created.SequenceNumber,
	)
	o.record(ctx, "create", actor, created.ID, nil, created)
	telemetry.SetOK(span)
	return created, nil
}

// EditInvoice replaces an invoice's content. An issued invoice is first
// forced back to draft: credit settlements are released and cash already
// recorded against it becomes credit held for the owner.
func (o *PaymentOrchestrator) EditInvoice(ctx context.Context, actor shared.Actor, invoiceID uuid.UUID, req EditInvoiceRequest) (*view.InvoiceView, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	owner, err := req.owner()
	if err != nil {
		return nil, err
	}
	lines, err := req.lineItems()
	if err != nil {
		return nil, err
	}

	return o.mutateInvoice(ctx, actor, invoiceID, "edit", func(ctx context.Context, u *unitOfWork, inv *invoicing.Invoice) error {
		now := o.now()
		if inv.Status != invoicing.StatusDraft {
			previous := inv.Status
			if err := inv.ForceDraft("invoice edited", now); err != nil {
				return err
			}
			released, err := u.ledger.Release(ctx, actor.AgencyID, inv.ID, now)
			if err != nil {
				return err
			}
			o.logger.Info("Issued invoice forced back to draft for edit",
				zap.String("invoice", inv.SequenceNumber),
				zap.String("from_status", previous.String()),
				zap.Int("detached", len(released.Detached)),
				zap.Int("removed", len(released.Removed)),
			)
		}
		if owner != inv.Owner() {
			if err := requireParty(ctx, u.repos, actor.AgencyID, owner); err != nil {
				return err
			}
		}
		notes := req.Notes
		return inv.Edit(invoicing.EditInput{
			Owner:     owner,
			Lines:     lines,
			VATRate:   req.VATRate,
			IssueDate: req.IssueDate,
			DueDate:   req.DueDate,
			Notes:     &notes,
		})
	})
}

// DeleteInvoice removes an unpaid invoice together with its ledger entries
func (o *PaymentOrchestrator) DeleteInvoice(ctx context.Context, actor shared.Actor, invoiceID uuid.UUID) error {
	_, err := o.mutateInvoice(ctx, actor, invoiceID, "delete", func(ctx context.Context, u *unitOfWork, inv *invoicing.Invoice) error {
		if err := inv.EnsureDeletable(); err != nil {
			return err
		}
		if _, err := u.ledger.RemoveForInvoice(ctx, actor.AgencyID, inv.ID); err != nil {
			return err
		}
		if err := u.repos.Invoices().Delete(ctx, inv); err != nil {
			return fmt.Errorf("delete invoice: %w", err)
		}
		u.deleted = true
		return nil
	})
	return err
}

// RecordSupplierPrepayment records money advanced to a supplier. It is held
// as credit and consumed by the supplier's next invoices when they are sent.
func (o *PaymentOrchestrator) RecordSupplierPrepayment(ctx context.Context, actor shared.Actor, req SupplierPrepaymentRequest) (*view.OperationView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "record_supplier_prepayment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgencyID, actor.AgencyID.String(),
		telemetry.SpanAttrPartyKind, string(shared.PartySupplier),
		telemetry.SpanAttrPartyID, req.SupplierID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	amount := valueobject.RoundMoney(req.Amount)
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("AMOUNT_NOT_POSITIVE", "prepayment amount must be positive, got %s", req.Amount)
	}
	supplier := shared.SupplierParty(req.SupplierID)

	var recorded view.OperationView
	err := o.within(ctx, actor, func(ctx context.Context, u *unitOfWork) error {
		if err := o.lockParty(ctx, u, actor.AgencyID, supplier); err != nil {
			return err
		}
		op, err := ledger.NewOperation(ledger.NewOperationInput{
			AgencyID:    actor.AgencyID,
			CreatedBy:   actor.UserID,
			Direction:   ledger.DirectionOut,
			Category:    ledger.CategorySupplierPrepayment,
			Method:      method(req.Method),
			Amount:      amount,
			Date:        dateOr(req.Date, o.now()),
			Party:       &supplier,
			Description: "Supplier prepayment",
			Reference:   req.Reference,
		})
		if err != nil {
			return err
		}
		if err := u.ledger.Append(ctx, op); err != nil {
			return err
		}
		u.touch(supplier)
		recorded = o.views.Operation(op)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	o.logger.Info("Supplier prepayment recorded",
		zap.String("agency_id", actor.AgencyID.String()),
		zap.String("supplier_id", req.SupplierID.String()),
		zap.String("amount", amount.StringFixed(2)),
	)
	telemetry.SetAttribute(span, telemetry.SpanAttrOperationID, recorded.ID.String())
	telemetry.SetOK(span)
	return &recorded, nil
}
