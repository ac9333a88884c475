package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/domain/invoicing"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSequenceAllocator hands out invoice numbers from the invoice_sequences
// counter row. Run inside the creating transaction, the UPDATE holds the row
// lock until commit so concurrent creators for the same agency and year queue
// behind each other.
type GormSequenceAllocator struct {
	db       *gorm.DB
	invoices *GormInvoiceRepository
	now      func() time.Time
}

// NewGormSequenceAllocator creates a new GormSequenceAllocator. A nil clock
// falls back to time.Now.
func NewGormSequenceAllocator(db *gorm.DB, now func() time.Time) *GormSequenceAllocator {
	if now == nil {
		now = time.Now
	}
	return &GormSequenceAllocator{db: db, invoices: NewGormInvoiceRepository(db), now: now}
}

// Next increments and returns the counter for the agency and year. The first
// call for a year seeds the row from the highest number already issued.
func (a *GormSequenceAllocator) Next(ctx context.Context, agencyID uuid.UUID, year int) (int64, error) {
	for attempt := 0; attempt < 2; attempt++ {
		n, ok, err := a.increment(ctx, agencyID, year)
		if err != nil || ok {
			return n, err
		}
		n, ok, err = a.seed(ctx, agencyID, year)
		if err != nil || ok {
			return n, err
		}
		// another transaction seeded the row first
	}
	return 0, fmt.Errorf("sequence counter for agency %s year %d could not be seeded", agencyID, year)
}

func (a *GormSequenceAllocator) increment(ctx context.Context, agencyID uuid.UUID, year int) (int64, bool, error) {
	result := a.db.WithContext(ctx).
		Model(&models.InvoiceSequenceModel{}).
		Where("tenant_id = ? AND year = ?", agencyID, year).
		Updates(map[string]interface{}{
			"last_value": gorm.Expr("last_value + 1"),
			"updated_at": a.now(),
		})
	if result.Error != nil {
		return 0, false, fmt.Errorf("increment sequence counter: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}

	var row models.InvoiceSequenceModel
	if err := a.db.WithContext(ctx).
		Where("tenant_id = ? AND year = ?", agencyID, year).
		First(&row).Error; err != nil {
		return 0, false, fmt.Errorf("read sequence counter: %w", err)
	}
	return row.LastValue, true, nil
}

func (a *GormSequenceAllocator) seed(ctx context.Context, agencyID uuid.UUID, year int) (int64, bool, error) {
	numbers, err := a.invoices.SequenceNumbersForYear(ctx, agencyID, year)
	if err != nil {
		return 0, false, err
	}
	row := models.InvoiceSequenceModel{
		TenantID:  agencyID,
		Year:      year,
		LastValue: invoicing.MaxSequence(numbers, year) + 1,
		UpdatedAt: a.now(),
	}
	result := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return 0, false, fmt.Errorf("seed sequence counter: %w", result.Error)
	}
	return row.LastValue, result.RowsAffected == 1, nil
}

// Resync raises the counter to the highest number already stored for the
// year. Next seeds a missing row on its own, so only an existing row is moved.
func (a *GormSequenceAllocator) Resync(ctx context.Context, agencyID uuid.UUID, year int) error {
	numbers, err := a.invoices.SequenceNumbersForYear(ctx, agencyID, year)
	if err != nil {
		return err
	}
	highest := invoicing.MaxSequence(numbers, year)
	result := a.db.WithContext(ctx).
		Model(&models.InvoiceSequenceModel{}).
		Where("tenant_id = ? AND year = ? AND last_value < ?", agencyID, year, highest).
		Updates(map[string]interface{}{
			"last_value": highest,
			"updated_at": a.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("resync sequence counter: %w", result.Error)
	}
	return nil
}

var (
	_ invoicing.SequenceAllocator = (*GormSequenceAllocator)(nil)
	_ invoicing.SequenceResyncer  = (*GormSequenceAllocator)(nil)
)
