package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/domain/invoicing"
	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/erp/backoffice/internal/domain/partner"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB opens a private in-memory sqlite database with the full schema.
// A single connection keeps every statement on the same memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(sqlite.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared"))
	require.NoError(t, err)
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate())
	return db.DB
}

var testDay = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

func seedClient(t *testing.T, db *gorm.DB, agencyID uuid.UUID, name string) *partner.Client {
	t.Helper()
	c, err := partner.NewClient(agencyID, name)
	require.NoError(t, err)
	require.NoError(t, NewGormClientRepository(db).Create(context.Background(), c))
	return c
}

func seedSupplier(t *testing.T, db *gorm.DB, agencyID uuid.UUID, name string) *partner.Supplier {
	t.Helper()
	s, err := partner.NewSupplier(agencyID, name)
	require.NoError(t, err)
	require.NoError(t, NewGormSupplierRepository(db).Create(context.Background(), s))
	return s
}

func newTestInvoice(t *testing.T, agencyID uuid.UUID, number string, owner shared.PartyRef, issue time.Time, price string) *invoicing.Invoice {
	t.Helper()
	line, err := invoicing.NewLineItem("Package tour", decimal.NewFromInt(1), decimal.RequireFromString(price))
	require.NoError(t, err)
	inv, err := invoicing.NewInvoice(invoicing.NewInvoiceInput{
		AgencyID:       agencyID,
		SequenceNumber: number,
		Owner:          owner,
		Lines:          invoicing.LineItems{line},
		VATRate:        decimal.Zero,
		IssueDate:      issue,
		DueDate:        issue.AddDate(0, 0, 30),
	})
	require.NoError(t, err)
	return inv
}

func newTestOperation(t *testing.T, agencyID uuid.UUID, category ledger.Category, dir ledger.Direction, amount string, date time.Time) *ledger.Operation {
	t.Helper()
	op, err := ledger.NewOperation(ledger.NewOperationInput{
		AgencyID:  agencyID,
		Direction: dir,
		Category:  category,
		Method:    ledger.MethodCash,
		Amount:    decimal.RequireFromString(amount),
		Date:      date,
	})
	require.NoError(t, err)
	return op
}
