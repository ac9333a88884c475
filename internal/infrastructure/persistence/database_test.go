package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newMockDatabase opens a Database on the postgres dialector over sqlmock
func newMockDatabase(t *testing.T, opts ...DatabaseOption) (*Database, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), opts...)
	require.NoError(t, err)
	return db, mock, mockDB
}

func TestWithQueryLogger(t *testing.T) {
	tests := []struct {
		level      string
		wantLevel  gormlogger.LogLevel
		wantRedact bool
	}{
		{"silent", gormlogger.Silent, true},
		{"warn", gormlogger.Warn, true},
		{"info", gormlogger.Info, false},
		{"debug", gormlogger.Info, false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var o databaseOptions
			WithQueryLogger(zap.NewNop(), tt.level)(&o)
			assert.Equal(t, tt.wantLevel, o.logLevel)
			assert.Equal(t, tt.wantRedact, o.redactParams)
			assert.NotNil(t, o.logger)
		})
	}

	var o databaseOptions
	WithQueryLogger(nil, "warn")(&o)
	assert.Nil(t, o.logger, "a nil logger keeps the default")
}

func TestOpen_FailedStatementLoggedWithAgency(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	db, mock, mockDB := newMockDatabase(t, WithQueryLogger(zap.New(core), "warn"))
	defer mockDB.Close()

	agencyID := uuid.New()
	mock.ExpectExec(`UPDATE "clients" SET balance_debt`).
		WillReturnError(errors.New("connection reset by peer"))

	ctx, _ := logger.WithAgency(context.Background(), zap.NewNop(), agencyID.String())
	err := db.DB.WithContext(ctx).
		Exec(`UPDATE "clients" SET balance_debt = ? WHERE tenant_id = ?`, "120.00", agencyID).Error
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	entries := recorded.FilterMessage("SQL error").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "gorm", entries[0].LoggerName)
	assert.Equal(t, agencyID.String(), entries[0].ContextMap()["agency_id"])
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
	assert.Zero(t, stats.WaitCount)
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)
	mock.ExpectClose()

	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_AutoMigrateAndTranslateError(t *testing.T) {
	db, err := Open(sqlite.Open(":memory:"), WithQueryLogger(zap.NewNop(), "silent"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.AutoMigrate())
	for _, table := range []string{"clients", "suppliers", "invoices", "operations", "invoice_sequences"} {
		assert.True(t, db.DB.Migrator().HasTable(table), table)
	}

	id := uuid.New()
	require.NoError(t, db.DB.Exec(`INSERT INTO invoice_sequences (tenant_id, year, last_value) VALUES (?, ?, ?)`, id, 2024, 1).Error)
	err = db.DB.Table("invoice_sequences").Create(map[string]any{"tenant_id": id, "year": 2024, "last_value": 2}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	assert.True(t, isUniqueViolation(err))
}
