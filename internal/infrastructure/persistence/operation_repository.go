package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormOperationRepository implements OperationRepository using GORM
type GormOperationRepository struct {
	db *gorm.DB
}

// NewGormOperationRepository creates a new GormOperationRepository
func NewGormOperationRepository(db *gorm.DB) *GormOperationRepository {
	return &GormOperationRepository{db: db}
}

// FindByIDForTenant finds an operation by ID within a tenant
func (r *GormOperationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Operation, error) {
	var model models.OperationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("operation", id)
		}
		return nil, fmt.Errorf("find operation %s: %w", id, err)
	}
	return model.ToDomain(), nil
}

// FindByInvoice returns the operations currently linked to an invoice
func (r *GormOperationRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]ledger.Operation, error) {
	var rows []models.OperationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("date ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find operations of invoice %s: %w", invoiceID, err)
	}
	return operationsToDomain(rows), nil
}

// FindByParty returns every operation attributed to the client or supplier
func (r *GormOperationRepository) FindByParty(ctx context.Context, tenantID uuid.UUID, party shared.PartyRef) ([]ledger.Operation, error) {
	var rows []models.OperationModel
	if err := partyScope(r.db.WithContext(ctx), party).
		Where("tenant_id = ?", tenantID).
		Order("date ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find operations of %s: %w", party, err)
	}
	return operationsToDomain(rows), nil
}

// FindAllForTenant lists operations with filtering and pagination
func (r *GormOperationRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ledger.OperationFilter) ([]ledger.Operation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.OperationModel{}).Where("tenant_id = ?", tenantID)
	if filter.From != nil {
		query = query.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("date <= ?", *filter.To)
	}
	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}
	if filter.Method != nil {
		query = query.Where("method = ?", *filter.Method)
	}
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count operations: %w", err)
	}

	var rows []models.OperationModel
	if err := query.
		Order(operationSortColumns.orderClause(filter.OrderBy, filter.OrderDir, "date")).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list operations: %w", err)
	}
	return operationsToDomain(rows), total, nil
}

// FindUntil returns every operation dated on or before asOf
func (r *GormOperationRepository) FindUntil(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]ledger.Operation, error) {
	var rows []models.OperationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND date <= ?", tenantID, asOf).
		Order("date ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find operations until %s: %w", asOf.Format(time.DateOnly), err)
	}
	return operationsToDomain(rows), nil
}

// Create appends an operation
func (r *GormOperationRepository) Create(ctx context.Context, op *ledger.Operation) error {
	model := models.OperationModelFromDomain(op)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("create operation: %w", err)
	}
	return nil
}

// SaveWithLock persists the mutable fields with optimistic locking (checks version).
// Amount, direction and method are never written after creation.
func (r *GormOperationRepository) SaveWithLock(ctx context.Context, op *ledger.Operation) error {
	result := r.db.WithContext(ctx).
		Model(&models.OperationModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", op.TenantID, op.ID, op.Version-1).
		Updates(map[string]interface{}{
			"category":    op.Category,
			"date":        op.Date,
			"invoice_id":  op.InvoiceID,
			"description": op.Description,
			"reference":   op.Reference,
			"metadata":    op.Metadata,
			"version":     op.Version,
			"updated_at":  op.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("save operation %s: %w", op.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrencyError("OPTIMISTIC_LOCK_FAILED", "operation %s was modified by another transaction", op.ID)
	}
	return nil
}

// DeleteByIDs removes the given operations within a tenant
func (r *GormOperationRepository) DeleteByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Delete(&models.OperationModel{}).Error; err != nil {
		return fmt.Errorf("delete operations: %w", err)
	}
	return nil
}

func operationsToDomain(rows []models.OperationModel) []ledger.Operation {
	ops := make([]ledger.Operation, len(rows))
	for i := range rows {
		ops[i] = *rows[i].ToDomain()
	}
	return ops
}

var _ ledger.OperationRepository = (*GormOperationRepository)(nil)
