package persistence

import (
	"context"
	"testing"

	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormOperationRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewGormOperationRepository(db)
	agencyID := uuid.New()
	client := seedClient(t, db, agencyID, "Voyages Martin")
	invoiceID := uuid.New()

	payment := newTestOperation(t, agencyID, ledger.CategoryInvoicePayment, ledger.DirectionIn, "80", testDay)
	payment.InvoiceID = &invoiceID
	payment.ClientID = &client.ID
	refund := newTestOperation(t, agencyID, ledger.CategoryRefund, ledger.DirectionOut, "20", testDay.AddDate(0, 0, 2))
	refund.ClientID = &client.ID
	original := decimal.NewFromInt(20)
	refund.Metadata = ledger.Metadata{ReversalOfInvoiceID: &invoiceID, ReversalKind: ledger.ReversalRefund, OriginalAmount: &original}
	expense := newTestOperation(t, agencyID, ledger.CategoryExpense, ledger.DirectionOut, "15.75", testDay.AddDate(0, 0, 5))

	for _, op := range []*ledger.Operation{payment, refund, expense} {
		require.NoError(t, repo.Create(ctx, op))
	}

	t.Run("find by id keeps metadata", func(t *testing.T) {
		found, err := repo.FindByIDForTenant(ctx, agencyID, refund.ID)
		require.NoError(t, err)
		assert.True(t, found.Metadata.IsReversal())
		assert.Equal(t, invoiceID, *found.Metadata.ReversalOfInvoiceID)
		assert.True(t, found.Metadata.OriginalAmount.Equal(original))
		assert.True(t, found.Amount.Equal(decimal.NewFromInt(20)))

		_, err = repo.FindByIDForTenant(ctx, uuid.New(), refund.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("by invoice and party", func(t *testing.T) {
		linked, err := repo.FindByInvoice(ctx, agencyID, invoiceID)
		require.NoError(t, err)
		require.Len(t, linked, 1)
		assert.Equal(t, payment.ID, linked[0].ID)

		ops, err := repo.FindByParty(ctx, agencyID, client.Party())
		require.NoError(t, err)
		assert.Len(t, ops, 2)
	})

	t.Run("until", func(t *testing.T) {
		ops, err := repo.FindUntil(ctx, agencyID, testDay.AddDate(0, 0, 2))
		require.NoError(t, err)
		assert.Len(t, ops, 2)
	})

	t.Run("filtered listing", func(t *testing.T) {
		dir := ledger.DirectionOut
		ops, total, err := repo.FindAllForTenant(ctx, agencyID, ledger.OperationFilter{
			Filter:    shared.Filter{Page: 1, PageSize: 10, OrderBy: "date", OrderDir: "desc"},
			Direction: &dir,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, ops, 2)
		assert.Equal(t, expense.ID, ops[0].ID)
		assert.Equal(t, refund.ID, ops[1].ID)

		category := ledger.CategoryExpense
		ops, total, err = repo.FindAllForTenant(ctx, agencyID, ledger.OperationFilter{Category: &category})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, expense.ID, ops[0].ID)
	})

	t.Run("edit and detach", func(t *testing.T) {
		income := ledger.CategoryOtherIncome
		note := "reclassified"
		require.NoError(t, expense.Edit(ledger.EditInput{Category: &income, Description: &note}))
		require.NoError(t, repo.SaveWithLock(ctx, expense))

		require.NoError(t, payment.Detach(testDay))
		require.NoError(t, repo.SaveWithLock(ctx, payment))

		stored, err := repo.FindByIDForTenant(ctx, agencyID, payment.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.InvoiceID)
		require.NotNil(t, stored.Metadata.DetachedFromInvoiceID)
		assert.Equal(t, invoiceID, *stored.Metadata.DetachedFromInvoiceID)
		assert.True(t, stored.Amount.Equal(decimal.NewFromInt(80)))

		edited, err := repo.FindByIDForTenant(ctx, agencyID, expense.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.CategoryOtherIncome, edited.Category)
		assert.Equal(t, "reclassified", edited.Description)

		err = repo.SaveWithLock(ctx, expense)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("delete by ids", func(t *testing.T) {
		require.NoError(t, repo.DeleteByIDs(ctx, agencyID, nil))
		require.NoError(t, repo.DeleteByIDs(ctx, uuid.New(), []uuid.UUID{refund.ID}))
		require.NoError(t, repo.DeleteByIDs(ctx, agencyID, []uuid.UUID{refund.ID, expense.ID}))

		ops, err := repo.FindUntil(ctx, agencyID, testDay.AddDate(1, 0, 0))
		require.NoError(t, err)
		require.Len(t, ops, 1)
		assert.Equal(t, payment.ID, ops[0].ID)
	})
}
