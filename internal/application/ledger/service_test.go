package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOperationRepository is a mock implementation of ledger.OperationRepository
type MockOperationRepository struct {
	mock.Mock
}

func (m *MockOperationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Operation, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Operation), args.Error(1)
}

func (m *MockOperationRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]ledger.Operation, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).([]ledger.Operation), args.Error(1)
}

func (m *MockOperationRepository) FindByParty(ctx context.Context, tenantID uuid.UUID, party shared.PartyRef) ([]ledger.Operation, error) {
	args := m.Called(ctx, tenantID, party)
	return args.Get(0).([]ledger.Operation), args.Error(1)
}

func (m *MockOperationRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ledger.OperationFilter) ([]ledger.Operation, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]ledger.Operation), args.Get(1).(int64), args.Error(2)
}

func (m *MockOperationRepository) FindUntil(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]ledger.Operation, error) {
	args := m.Called(ctx, tenantID, asOf)
	return args.Get(0).([]ledger.Operation), args.Error(1)
}

func (m *MockOperationRepository) Create(ctx context.Context, op *ledger.Operation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *MockOperationRepository) SaveWithLock(ctx context.Context, op *ledger.Operation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *MockOperationRepository) DeleteByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) error {
	args := m.Called(ctx, tenantID, ids)
	return args.Error(0)
}

func newTestService(repo *MockOperationRepository, now time.Time) *Service {
	s := NewService(repo, nil)
	s.now = func() time.Time { return now }
	return s
}

func newOp(t *testing.T, agencyID uuid.UUID, dir ledger.Direction, cat ledger.Category, method ledger.PaymentMethod, amount int64, date time.Time) ledger.Operation {
	t.Helper()
	op, err := ledger.NewOperation(ledger.NewOperationInput{
		AgencyID:  agencyID,
		Direction: dir,
		Category:  cat,
		Method:    method,
		Amount:    decimal.NewFromInt(amount),
		Date:      date,
	})
	require.NoError(t, err)
	return *op
}

func TestService_RecordEntry(t *testing.T) {
	ctx := context.Background()
	actor := shared.Actor{AgencyID: uuid.New(), UserID: uuid.New()}
	now := time.Date(2026, time.May, 4, 10, 0, 0, 0, time.UTC)

	t.Run("expense goes out", func(t *testing.T) {
		repo := new(MockOperationRepository)
		svc := newTestService(repo, now)
		repo.On("Create", ctx, mock.MatchedBy(func(op *ledger.Operation) bool {
			return op.TenantID == actor.AgencyID &&
				op.Direction == ledger.DirectionOut &&
				op.Category == ledger.CategoryExpense &&
				op.InvoiceID == nil && op.ClientID == nil && op.SupplierID == nil &&
				op.Date.Equal(now)
		})).Return(nil)

		v, err := svc.RecordEntry(ctx, actor, RecordEntryRequest{
			Category:    "expense",
			Method:      "cash",
			Amount:      decimal.RequireFromString("45.5"),
			Description: "Office supplies",
		})

		require.NoError(t, err)
		assert.Equal(t, "out", v.Direction)
		assert.Equal(t, "45.50", v.Amount)
		assert.Equal(t, "cash", v.PaymentMethod)
		repo.AssertExpectations(t)
	})

	t.Run("other income comes in", func(t *testing.T) {
		repo := new(MockOperationRepository)
		svc := newTestService(repo, now)
		repo.On("Create", ctx, mock.Anything).Return(nil)

		v, err := svc.RecordEntry(ctx, actor, RecordEntryRequest{
			Category:    "other_income",
			Method:      "transfer",
			Amount:      decimal.NewFromInt(120),
			Description: "Commission from partner",
		})

		require.NoError(t, err)
		assert.Equal(t, "in", v.Direction)
		assert.Equal(t, "other_income", v.Category)
	})

	t.Run("invoice categories are reserved", func(t *testing.T) {
		repo := new(MockOperationRepository)
		svc := newTestService(repo, now)

		_, err := svc.RecordEntry(ctx, actor, RecordEntryRequest{
			Category:    "invoice_payment",
			Method:      "cash",
			Amount:      decimal.NewFromInt(10),
			Description: "Sneaky payment",
		})

		assert.True(t, errors.Is(err, shared.ErrValidation))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("credit balance moves no cash", func(t *testing.T) {
		repo := new(MockOperationRepository)
		svc := newTestService(repo, now)

		_, err := svc.RecordEntry(ctx, actor, RecordEntryRequest{
			Category:    "expense",
			Method:      "credit_balance",
			Amount:      decimal.NewFromInt(10),
			Description: "Nope",
		})

		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("amount must be positive", func(t *testing.T) {
		repo := new(MockOperationRepository)
		svc := newTestService(repo, now)

		_, err := svc.RecordEntry(ctx, actor, RecordEntryRequest{
			Category:    "expense",
			Method:      "cash",
			Amount:      decimal.Zero,
			Description: "Nothing",
		})

		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}

func TestService_EditEntry(t *testing.T) {
	ctx := context.Background()
	actor := shared.Actor{AgencyID: uuid.New(), UserID: uuid.New()}
	now := time.Date(2026, time.May, 4, 10, 0, 0, 0, time.UTC)

	t.Run("unlinked entry is re-categorised", func(t *testing.T) {
		repo := new(MockOperationRepository)
		svc := newTestService(repo, now)
		op := newOp(t, actor.AgencyID, ledger.DirectionOut, ledger.CategoryExpense, ledger.MethodCash, 30, now)
		repo.On("FindByIDForTenant", ctx, actor.AgencyID, op.ID).Return(&op, nil)
		repo.On("SaveWithLock", ctx, mock.AnythingOfType("*ledger.Operation")).Return(nil)

		description := "Taxi to airport"
		category := "other_income"
		v, err := svc.EditEntry(ctx, actor, op.ID, EditEntryRequest{Description: &description, Category: &category})

		require.NoError(t, err)
		assert.Equal(t, "Taxi to airport", v.Description)
		assert.Equal(t, "other_income", v.Category)
		assert.Equal(t, 2, op.Version)
		repo.AssertExpectations(t)
	})

	t.Run("linked entry is refused", func(t *testing.T) {
		repo := new(MockOperationRepository)
		svc := newTestService(repo, now)
		op := newOp(t, actor.AgencyID, ledger.DirectionIn, ledger.CategoryInvoicePayment, ledger.MethodCash, 30, now)
		invoiceID := uuid.New()
		op.InvoiceID = &invoiceID
		repo.On("FindByIDForTenant", ctx, actor.AgencyID, op.ID).Return(&op, nil)

		description := "edited"
		_, err := svc.EditEntry(ctx, actor, op.ID, EditEntryRequest{Description: &description})

		assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
		repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})

	t.Run("unknown entry", func(t *testing.T) {
		repo := new(MockOperationRepository)
		svc := newTestService(repo, now)
		id := uuid.New()
		repo.On("FindByIDForTenant", ctx, actor.AgencyID, id).Return(nil, shared.NewNotFoundError("operation", id))

		_, err := svc.EditEntry(ctx, actor, id, EditEntryRequest{})

		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})
}

func TestService_CashPosition(t *testing.T) {
	ctx := context.Background()
	agencyID := uuid.New()
	asOf := time.Date(2026, time.June, 30, 23, 59, 59, 0, time.UTC)
	day := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	repo := new(MockOperationRepository)
	svc := newTestService(repo, asOf)
	repo.On("FindUntil", ctx, agencyID, asOf).Return([]ledger.Operation{
		newOp(t, agencyID, ledger.DirectionIn, ledger.CategoryInvoicePayment, ledger.MethodCash, 1000, day),
		newOp(t, agencyID, ledger.DirectionIn, ledger.CategoryInvoicePayment, ledger.MethodTransfer, 500, day),
		newOp(t, agencyID, ledger.DirectionOut, ledger.CategorySupplierPayment, ledger.MethodTransfer, 200, day),
		newOp(t, agencyID, ledger.DirectionOut, ledger.CategorySupplierPayment, ledger.MethodCreditBalance, 300, day),
		newOp(t, agencyID, ledger.DirectionOut, ledger.CategoryExpense, ledger.MethodCheque, 50, day),
	}, nil)

	pos, err := svc.CashPosition(ctx, agencyID, asOf)
	require.NoError(t, err)

	assert.Equal(t, "1500.00", pos.In)
	assert.Equal(t, "250.00", pos.Out)
	assert.Equal(t, "1250.00", pos.Net)
	assert.Equal(t, "1000.00", pos.ByMethod["cash"])
	assert.Equal(t, "300.00", pos.ByMethod["transfer"])
	assert.Equal(t, "-50.00", pos.ByMethod["cheque"])
	assert.NotContains(t, pos.ByMethod, "credit_balance")
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	agencyID := uuid.New()
	invoiceID := uuid.New()

	repo := new(MockOperationRepository)
	svc := newTestService(repo, time.Now())
	repo.On("FindAllForTenant", ctx, agencyID, mock.MatchedBy(func(f ledger.OperationFilter) bool {
		return f.InvoiceID != nil && *f.InvoiceID == invoiceID &&
			f.Category != nil && *f.Category == ledger.CategoryInvoicePayment &&
			f.Page == 1 && f.PageSize == 20
	})).Return([]ledger.Operation{
		newOp(t, agencyID, ledger.DirectionIn, ledger.CategoryInvoicePayment, ledger.MethodCash, 10, time.Now()),
	}, int64(1), nil)

	ops, total, err := svc.List(ctx, agencyID, EntryListFilter{InvoiceID: &invoiceID, Category: "invoice_payment"})

	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, ops, 1)

	_, _, err = svc.List(ctx, agencyID, EntryListFilter{Direction: "sideways"})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}
