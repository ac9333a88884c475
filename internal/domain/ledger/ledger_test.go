package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOperationRepository is a mock implementation of OperationRepository
type MockOperationRepository struct {
	mock.Mock
}

func (m *MockOperationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Operation, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Operation), args.Error(1)
}

func (m *MockOperationRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Operation, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).([]Operation), args.Error(1)
}

func (m *MockOperationRepository) FindByParty(ctx context.Context, tenantID uuid.UUID, party shared.PartyRef) ([]Operation, error) {
	args := m.Called(ctx, tenantID, party)
	return args.Get(0).([]Operation), args.Error(1)
}

func (m *MockOperationRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter OperationFilter) ([]Operation, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]Operation), args.Get(1).(int64), args.Error(2)
}

func (m *MockOperationRepository) FindUntil(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]Operation, error) {
	args := m.Called(ctx, tenantID, asOf)
	return args.Get(0).([]Operation), args.Error(1)
}

func (m *MockOperationRepository) Create(ctx context.Context, op *Operation) error {
	return m.Called(ctx, op).Error(0)
}

func (m *MockOperationRepository) SaveWithLock(ctx context.Context, op *Operation) error {
	return m.Called(ctx, op).Error(0)
}

func (m *MockOperationRepository) DeleteByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) error {
	return m.Called(ctx, tenantID, ids).Error(0)
}

func TestLedgerRelease(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	invoiceID := uuid.New()

	cash := linked(op(CategoryInvoicePayment, MethodCash, DirectionOut, 1000))
	cash.ID = uuid.New()
	cash.InvoiceID = &invoiceID
	settlement := linked(op(CategorySupplierPayment, MethodCreditBalance, DirectionOut, 3000))
	settlement.ID = uuid.New()
	settlement.InvoiceID = &invoiceID

	repo := new(MockOperationRepository)
	repo.On("FindByInvoice", ctx, tenantID, invoiceID).Return([]Operation{cash, settlement}, nil).Once()
	repo.On("DeleteByIDs", ctx, tenantID, []uuid.UUID{settlement.ID}).Return(nil).Once()
	repo.On("FindByInvoice", ctx, tenantID, invoiceID).Return([]Operation{cash}, nil).Once()
	repo.On("SaveWithLock", ctx, mock.MatchedBy(func(o *Operation) bool {
		return o.ID == cash.ID && !o.IsLinked() && *o.Metadata.DetachedFromInvoiceID == invoiceID
	})).Return(nil).Once()

	result, err := New(repo).Release(ctx, tenantID, invoiceID, time.Now())
	require.NoError(t, err)
	assert.Len(t, result.Removed, 1)
	assert.Len(t, result.Detached, 1)
	assert.Equal(t, settlement.ID, result.Removed[0].ID)
	repo.AssertExpectations(t)
}

func TestLedgerRemoveForInvoice(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	invoiceID := uuid.New()

	t.Run("nothing linked skips delete", func(t *testing.T) {
		repo := new(MockOperationRepository)
		repo.On("FindByInvoice", ctx, tenantID, invoiceID).Return([]Operation{}, nil)

		removed, err := New(repo).RemoveForInvoice(ctx, tenantID, invoiceID)
		require.NoError(t, err)
		assert.Empty(t, removed)
		repo.AssertNotCalled(t, "DeleteByIDs", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("deletes every linked operation", func(t *testing.T) {
		a := linked(op(CategoryInvoicePayment, MethodCash, DirectionIn, 400))
		a.ID = uuid.New()
		b := linked(op(CategoryInvoicePayment, MethodCash, DirectionIn, 600))
		b.ID = uuid.New()

		repo := new(MockOperationRepository)
		repo.On("FindByInvoice", ctx, tenantID, invoiceID).Return([]Operation{a, b}, nil)
		repo.On("DeleteByIDs", ctx, tenantID, []uuid.UUID{a.ID, b.ID}).Return(nil)

		removed, err := New(repo).RemoveForInvoice(ctx, tenantID, invoiceID)
		require.NoError(t, err)
		assert.Len(t, removed, 2)
		repo.AssertExpectations(t)
	})
}
