package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/backoffice/internal/domain/partner"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormClientRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewGormClientRepository(db)
	agencyID := uuid.New()

	zoe := seedClient(t, db, agencyID, "Zoe Travel")
	anna := seedClient(t, db, agencyID, "Anna Tours")
	seedClient(t, db, uuid.New(), "Foreign client")

	t.Run("list ids ordered by name", func(t *testing.T) {
		ids, err := repo.ListIDs(ctx, agencyID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{anna.ID, zoe.ID}, ids)
	})

	t.Run("cached balance round trip", func(t *testing.T) {
		c, err := repo.FindByIDForUpdate(ctx, agencyID, zoe.ID)
		require.NoError(t, err)
		changed := c.ApplyBalance(partner.Balance{
			Debt:   decimal.RequireFromString("120.25"),
			Credit: decimal.RequireFromString("30"),
		}, testDay)
		require.True(t, changed)
		require.NoError(t, repo.SaveWithLock(ctx, c))

		stored, err := repo.FindByIDForTenant(ctx, agencyID, zoe.ID)
		require.NoError(t, err)
		assert.True(t, stored.Balance.Equal(decimal.RequireFromString("120.25")))
		assert.True(t, stored.CreditBalance.Equal(decimal.NewFromInt(30)))
		require.NotNil(t, stored.BalanceRefreshedAt)
		assert.Equal(t, c.Version, stored.Version)
	})

	t.Run("other agency sees not found", func(t *testing.T) {
		_, err := repo.FindByIDForTenant(ctx, uuid.New(), zoe.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormSupplierRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewGormSupplierRepository(db)
	agencyID := uuid.New()
	atlas := seedSupplier(t, db, agencyID, "Hotel Atlas")

	s, err := repo.FindByIDForUpdate(ctx, agencyID, atlas.ID)
	require.NoError(t, err)
	s.ApplyBalance(partner.Balance{Debt: decimal.NewFromInt(500), Credit: decimal.Zero}, testDay)
	require.NoError(t, repo.SaveWithLock(ctx, s))

	stored, err := repo.FindByIDForTenant(ctx, agencyID, atlas.ID)
	require.NoError(t, err)
	assert.True(t, stored.DebtOwedByAgency.Equal(decimal.NewFromInt(500)))
	assert.True(t, stored.CreditOwedToAgency.IsZero())

	ids, err := repo.ListIDs(ctx, agencyID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{atlas.ID}, ids)

	t.Run("saving the same version twice conflicts", func(t *testing.T) {
		err := repo.SaveWithLock(ctx, s)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})
}

func TestGormClientRepository_SQL(t *testing.T) {
	t.Run("FindByIDForUpdate locks the row", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		agencyID, id := uuid.New(), uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "clients" WHERE tenant_id = \$1 AND id = \$2 ORDER BY "clients"."id" LIMIT \$3 FOR UPDATE`).
			WithArgs(agencyID, id, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "balance", "credit_balance", "version"}).
				AddRow(id, agencyID, "Voyages Martin", "10.5", "0", 3))

		c, err := NewGormClientRepository(db.DB).FindByIDForUpdate(context.Background(), agencyID, id)
		require.NoError(t, err)
		assert.Equal(t, "Voyages Martin", c.Name)
		assert.Equal(t, 3, c.Version)
		assert.True(t, c.Balance.Equal(decimal.RequireFromString("10.5")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SaveWithLock with no matching version", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "clients" SET .* WHERE tenant_id = \$\d+ AND id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		c, err := partner.NewClient(uuid.New(), "Voyages Martin")
		require.NoError(t, err)
		c.IncrementVersion()

		err = NewGormClientRepository(db.DB).SaveWithLock(context.Background(), c)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
