package shared

import (
	"github.com/google/uuid"
)

// BaseAggregateRoot adds the optimistic-locking version. A new aggregate
// starts at version 1 and every accepted mutation bumps it once.
type BaseAggregateRoot struct {
	BaseEntity
	Version int
}

// NewBaseAggregateRoot creates an aggregate at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// IncrementVersion bumps the version and the update timestamp.
// Repositories persist with WHERE version = Version-1.
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
	a.Touch()
}

// TenantAggregateRoot is an aggregate owned by one agency. The agency is
// stored in the tenant_id column.
type TenantAggregateRoot struct {
	BaseAggregateRoot
	TenantID  uuid.UUID
	CreatedBy *uuid.UUID
}

// NewTenantAggregateRoot creates an aggregate owned by the agency
func NewTenantAggregateRoot(agencyID uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{BaseAggregateRoot: NewBaseAggregateRoot(), TenantID: agencyID}
}

// NewTenantAggregateRootWithCreator also records the creating user when one is known
func NewTenantAggregateRootWithCreator(agencyID, createdBy uuid.UUID) TenantAggregateRoot {
	root := NewTenantAggregateRoot(agencyID)
	if createdBy != uuid.Nil {
		root.CreatedBy = &createdBy
	}
	return root
}
