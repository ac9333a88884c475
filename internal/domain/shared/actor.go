package shared

import "github.com/google/uuid"

// Actor identifies who performs an operation and for which agency.
// Every query is scoped by AgencyID; UserID is recorded for attribution.
type Actor struct {
	AgencyID uuid.UUID
	UserID   uuid.UUID
}

// Validate rejects an actor without an agency
func (a Actor) Validate() error {
	if a.AgencyID == uuid.Nil {
		return NewValidationError("AGENCY_REQUIRED", "agency id is required")
	}
	return nil
}
