package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/domain/invoicing"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByIDForTenant finds an invoice by ID within a tenant
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("invoice", id)
		}
		return nil, fmt.Errorf("find invoice %s: %w", id, err)
	}
	return model.ToDomain(), nil
}

// FindByParty returns every invoice owned by the client or supplier
func (r *GormInvoiceRepository) FindByParty(ctx context.Context, tenantID uuid.UUID, party shared.PartyRef) ([]invoicing.Invoice, error) {
	var rows []models.InvoiceModel
	if err := partyScope(r.db.WithContext(ctx), party).
		Where("tenant_id = ?", tenantID).
		Order("issue_date ASC, sequence_number ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find invoices of %s: %w", party, err)
	}
	return invoicesToDomain(rows), nil
}

// FindAllForTenant lists invoices with filtering and pagination
func (r *GormInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("tenant_id = ?", tenantID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Party != nil {
		query = partyScope(query, *filter.Party)
	}
	if filter.From != nil {
		query = query.Where("issue_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("issue_date <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	var rows []models.InvoiceModel
	if err := query.
		Order(invoiceSortColumns.orderClause(filter.OrderBy, filter.OrderDir, "issue_date")).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	return invoicesToDomain(rows), total, nil
}

// FindByStatusDueBefore lists invoices in one of statuses due before the given time
func (r *GormInvoiceRepository) FindByStatusDueBefore(ctx context.Context, tenantID uuid.UUID, statuses []invoicing.Status, before time.Time) ([]invoicing.Invoice, error) {
	if len(statuses) == 0 {
		return []invoicing.Invoice{}, nil
	}
	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND due_date < ?", tenantID, statuses, before).
		Order("due_date ASC, sequence_number ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find invoices due before %s: %w", before.Format(time.DateOnly), err)
	}
	return invoicesToDomain(rows), nil
}

// FindAllByTenant returns every invoice of the tenant
func (r *GormInvoiceRepository) FindAllByTenant(ctx context.Context, tenantID uuid.UUID) ([]invoicing.Invoice, error) {
	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("issue_date ASC, sequence_number ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find invoices: %w", err)
	}
	return invoicesToDomain(rows), nil
}

// SequenceNumbersForYear returns the numbers issued by the tenant for the year
func (r *GormInvoiceRepository) SequenceNumbersForYear(ctx context.Context, tenantID uuid.UUID, year int) ([]string, error) {
	var numbers []string
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND sequence_number LIKE ?", tenantID, fmt.Sprintf("%%-%04d-%%", year)).
		Pluck("sequence_number", &numbers).Error; err != nil {
		return nil, fmt.Errorf("list sequence numbers for %d: %w", year, err)
	}
	return numbers, nil
}

// Create inserts a new invoice
func (r *GormInvoiceRepository) Create(ctx context.Context, inv *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return invoicing.NewDuplicateSequenceError(inv.SequenceNumber)
		}
		return fmt.Errorf("create invoice %s: %w", inv.SequenceNumber, err)
	}
	return nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, inv *invoicing.Invoice) error {
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", inv.TenantID, inv.ID, inv.Version-1).
		Updates(map[string]interface{}{
			"client_id":     inv.ClientID,
			"supplier_id":   inv.SupplierID,
			"status":        inv.Status,
			"line_items":    inv.LineItems,
			"vat_rate":      inv.VATRate,
			"amount_net":    inv.AmountNet,
			"amount_vat":    inv.AmountVAT,
			"amount_gross":  inv.AmountGross,
			"amount_paid":   inv.AmountPaid,
			"payments":      inv.Payments,
			"adjustments":   inv.Adjustments,
			"issue_date":    inv.IssueDate,
			"due_date":      inv.DueDate,
			"notes":         inv.Notes,
			"sent_at":       inv.SentAt,
			"paid_at":       inv.PaidAt,
			"cancelled_at":  inv.CancelledAt,
			"cancel_reason": inv.CancelReason,
			"version":       inv.Version,
			"updated_at":    inv.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("save invoice %s: %w", inv.SequenceNumber, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrencyError("OPTIMISTIC_LOCK_FAILED",
			"invoice %s was modified by another transaction", inv.SequenceNumber)
	}
	return nil
}

// Delete removes an invoice with an optimistic version check. A row that is
// gone or was saved since it was loaded is reported as a conflict.
func (r *GormInvoiceRepository) Delete(ctx context.Context, inv *invoicing.Invoice) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ? AND version = ?", inv.TenantID, inv.ID, inv.Version).
		Delete(&models.InvoiceModel{})
	if result.Error != nil {
		return fmt.Errorf("delete invoice %s: %w", inv.SequenceNumber, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrencyError("OPTIMISTIC_LOCK_FAILED",
			"invoice %s was modified by another transaction", inv.SequenceNumber)
	}
	return nil
}

// partyScope narrows a query to the rows owned by party
func partyScope(db *gorm.DB, party shared.PartyRef) *gorm.DB {
	if party.IsSupplier() {
		return db.Where("supplier_id = ?", party.ID)
	}
	return db.Where("client_id = ?", party.ID)
}

func invoicesToDomain(rows []models.InvoiceModel) []invoicing.Invoice {
	invoices := make([]invoicing.Invoice, len(rows))
	for i := range rows {
		invoices[i] = *rows[i].ToDomain()
	}
	return invoices
}

var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
