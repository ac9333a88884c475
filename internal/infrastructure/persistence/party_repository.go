package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/backoffice/internal/domain/partner"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormClientRepository implements ClientRepository using GORM
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a new GormClientRepository
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// FindByIDForTenant finds a client by ID within a tenant
func (r *GormClientRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*partner.Client, error) {
	return r.find(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds a client and locks its row until the transaction ends
func (r *GormClientRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*partner.Client, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, id)
}

func (r *GormClientRepository) find(db *gorm.DB, tenantID, id uuid.UUID) (*partner.Client, error) {
	var model models.ClientModel
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("client", id)
		}
		return nil, fmt.Errorf("find client %s: %w", id, err)
	}
	return model.ToDomain(), nil
}

// ListIDs returns every client ID of the tenant ordered by name
func (r *GormClientRepository) ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.ClientModel{}).
		Where("tenant_id = ?", tenantID).
		Order("name ASC, id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list client ids: %w", err)
	}
	return ids, nil
}

// Create inserts a new client
func (r *GormClientRepository) Create(ctx context.Context, client *partner.Client) error {
	model := models.ClientModelFromDomain(client)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

// SaveWithLock writes the cached balance with optimistic locking (checks version)
func (r *GormClientRepository) SaveWithLock(ctx context.Context, client *partner.Client) error {
	result := r.db.WithContext(ctx).
		Model(&models.ClientModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", client.TenantID, client.ID, client.Version-1).
		Updates(map[string]interface{}{
			"name":                 client.Name,
			"email":                client.Email,
			"phone":                client.Phone,
			"balance":              client.Balance,
			"credit_balance":       client.CreditBalance,
			"balance_refreshed_at": client.BalanceRefreshedAt,
			"version":              client.Version,
			"updated_at":           client.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("save client %s: %w", client.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrencyError("OPTIMISTIC_LOCK_FAILED", "client %s was modified by another transaction", client.ID)
	}
	return nil
}

// GormSupplierRepository implements SupplierRepository using GORM
type GormSupplierRepository struct {
	db *gorm.DB
}

// NewGormSupplierRepository creates a new GormSupplierRepository
func NewGormSupplierRepository(db *gorm.DB) *GormSupplierRepository {
	return &GormSupplierRepository{db: db}
}

// FindByIDForTenant finds a supplier by ID within a tenant
func (r *GormSupplierRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*partner.Supplier, error) {
	return r.find(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds a supplier and locks its row until the transaction ends
func (r *GormSupplierRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*partner.Supplier, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, id)
}

func (r *GormSupplierRepository) find(db *gorm.DB, tenantID, id uuid.UUID) (*partner.Supplier, error) {
	var model models.SupplierModel
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("supplier", id)
		}
		return nil, fmt.Errorf("find supplier %s: %w", id, err)
	}
	return model.ToDomain(), nil
}

// ListIDs returns every supplier ID of the tenant ordered by name
func (r *GormSupplierRepository) ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.SupplierModel{}).
		Where("tenant_id = ?", tenantID).
		Order("name ASC, id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list supplier ids: %w", err)
	}
	return ids, nil
}

// Create inserts a new supplier
func (r *GormSupplierRepository) Create(ctx context.Context, supplier *partner.Supplier) error {
	model := models.SupplierModelFromDomain(supplier)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("create supplier: %w", err)
	}
	return nil
}

// SaveWithLock writes the cached balance with optimistic locking (checks version)
func (r *GormSupplierRepository) SaveWithLock(ctx context.Context, supplier *partner.Supplier) error {
	result := r.db.WithContext(ctx).
		Model(&models.SupplierModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", supplier.TenantID, supplier.ID, supplier.Version-1).
		Updates(map[string]interface{}{
			"name":                  supplier.Name,
			"email":                 supplier.Email,
			"phone":                 supplier.Phone,
			"debt_owed_by_agency":   supplier.DebtOwedByAgency,
			"credit_owed_to_agency": supplier.CreditOwedToAgency,
			"balance_refreshed_at":  supplier.BalanceRefreshedAt,
			"version":               supplier.Version,
			"updated_at":            supplier.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("save supplier %s: %w", supplier.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrencyError("OPTIMISTIC_LOCK_FAILED", "supplier %s was modified by another transaction", supplier.ID)
	}
	return nil
}

var (
	_ partner.ClientRepository   = (*GormClientRepository)(nil)
	_ partner.SupplierRepository = (*GormSupplierRepository)(nil)
)
