// Package ledger is the cash register: it lists ledger entries, records
// entries that carry no invoice or balance meaning and reports the cash
// position. Invoice-linked entries are only ever written by the payment
// orchestrator.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/application/validation"
	"github.com/erp/backoffice/internal/application/view"
	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const spanService = "cash_register"

// Service provides cash register operations
type Service struct {
	repo   ledger.OperationRepository
	views  *view.Builder
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a cash register service
func NewService(repo ledger.OperationRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		views:  view.NewBuilder(),
		logger: logger,
		now:    time.Now,
	}
}

// List returns a page of the agency's ledger entries and the total count
func (s *Service) List(ctx context.Context, agencyID uuid.UUID, filter EntryListFilter) ([]view.OperationView, int64, error) {
	if err := validation.Struct(filter); err != nil {
		return nil, 0, err
	}
	ops, total, err := s.repo.FindAllForTenant(ctx, agencyID, filter.toDomain())
	if err != nil {
		return nil, 0, fmt.Errorf("list operations: %w", err)
	}
	return s.views.Operations(ops), total, nil
}

// Get returns one ledger entry
func (s *Service) Get(ctx context.Context, agencyID, id uuid.UUID) (*view.OperationView, error) {
	op, err := s.repo.FindByIDForTenant(ctx, agencyID, id)
	if err != nil {
		return nil, err
	}
	v := s.views.Operation(op)
	return &v, nil
}

// RecordEntry records an expense or other income. Such entries are never
// linked to an invoice or a party.
func (s *Service) RecordEntry(ctx context.Context, actor shared.Actor, req RecordEntryRequest) (*view.OperationView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "record_entry")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgencyID, actor.AgencyID.String(),
		telemetry.SpanAttrPaymentMethod, req.Method,
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	category := ledger.Category(req.Category)
	if !category.IsFree() {
		return nil, shared.NewValidationError("CATEGORY_NOT_FREE",
			"category %s is reserved for invoice movements", category)
	}

	date := req.Date
	if date.IsZero() {
		date = s.now()
	}
	op, err := ledger.NewOperation(ledger.NewOperationInput{
		AgencyID:    actor.AgencyID,
		CreatedBy:   actor.UserID,
		Direction:   directionFor(category),
		Category:    category,
		Method:      ledger.PaymentMethod(req.Method),
		Amount:      req.Amount,
		Date:        date,
		Description: req.Description,
		Reference:   req.Reference,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, op); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("record entry: %w", err)
	}

	s.logger.Info("Cash register entry recorded",
		zap.String("agency_id", actor.AgencyID.String()),
		zap.String("operation_id", op.ID.String()),
		zap.String("category", string(category)),
		zap.String("amount", op.Amount.StringFixed(2)),
	)
	telemetry.SetAttribute(span, telemetry.SpanAttrOperationID, op.ID.String())
	telemetry.SetOK(span)
	v := s.views.Operation(op)
	return &v, nil
}

// EditEntry changes free-text fields of an entry that is not linked to an invoice
func (s *Service) EditEntry(ctx context.Context, actor shared.Actor, id uuid.UUID, req EditEntryRequest) (*view.OperationView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "edit_entry")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgencyID, actor.AgencyID.String(),
		telemetry.SpanAttrOperationID, id.String(),
	)

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	op, err := s.repo.FindByIDForTenant(ctx, actor.AgencyID, id)
	if err != nil {
		return nil, err
	}
	if err := op.Edit(req.toDomain()); err != nil {
		return nil, err
	}
	if err := s.repo.SaveWithLock(ctx, op); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("save entry: %w", err)
	}

	s.logger.Info("Cash register entry edited",
		zap.String("agency_id", actor.AgencyID.String()),
		zap.String("operation_id", op.ID.String()),
	)
	telemetry.SetOK(span)
	v := s.views.Operation(op)
	return &v, nil
}

// CashPosition returns money in, money out and the net per method over every
// entry dated on or before asOf. A zero asOf means now.
func (s *Service) CashPosition(ctx context.Context, agencyID uuid.UUID, asOf time.Time) (*view.CashPositionView, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	ops, err := s.repo.FindUntil(ctx, agencyID, asOf)
	if err != nil {
		return nil, fmt.Errorf("load operations: %w", err)
	}
	v := s.views.CashPosition(ledger.ComputeCashPosition(ops, asOf))
	return &v, nil
}
