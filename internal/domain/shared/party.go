package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// PartyKind tells whether a counterparty is a client or a supplier
type PartyKind string

const (
	PartyClient   PartyKind = "client"
	PartySupplier PartyKind = "supplier"
)

// IsValid checks if the kind is known
func (k PartyKind) IsValid() bool {
	return k == PartyClient || k == PartySupplier
}

// PartyRef points at exactly one client or supplier
type PartyRef struct {
	Kind PartyKind
	ID   uuid.UUID
}

// ClientParty references a client
func ClientParty(id uuid.UUID) PartyRef {
	return PartyRef{Kind: PartyClient, ID: id}
}

// SupplierParty references a supplier
func SupplierParty(id uuid.UUID) PartyRef {
	return PartyRef{Kind: PartySupplier, ID: id}
}

// PartyFromIDs builds a reference from a nullable client/supplier pair.
// Exactly one of them must be set.
func PartyFromIDs(clientID, supplierID *uuid.UUID) (PartyRef, error) {
	hasClient := clientID != nil && *clientID != uuid.Nil
	hasSupplier := supplierID != nil && *supplierID != uuid.Nil
	switch {
	case hasClient && hasSupplier:
		return PartyRef{}, NewValidationError("OWNER_AMBIGUOUS", "exactly one of client or supplier must be set, got both")
	case hasClient:
		return ClientParty(*clientID), nil
	case hasSupplier:
		return SupplierParty(*supplierID), nil
	default:
		return PartyRef{}, NewValidationError("OWNER_REQUIRED", "exactly one of client or supplier must be set, got neither")
	}
}

// IsZero reports an unset reference
func (p PartyRef) IsZero() bool {
	return p.ID == uuid.Nil
}

// IsClient reports a client reference
func (p PartyRef) IsClient() bool {
	return p.Kind == PartyClient
}

// IsSupplier reports a supplier reference
func (p PartyRef) IsSupplier() bool {
	return p.Kind == PartySupplier
}

// IDs splits the reference back into the nullable pair used by storage
func (p PartyRef) IDs() (clientID, supplierID *uuid.UUID) {
	id := p.ID
	if p.IsClient() {
		return &id, nil
	}
	if p.IsSupplier() {
		return nil, &id
	}
	return nil, nil
}

// Validate rejects unknown kinds and nil ids
func (p PartyRef) Validate() error {
	if !p.Kind.IsValid() || p.ID == uuid.Nil {
		return NewValidationError("OWNER_REQUIRED", "a client or supplier owner is required")
	}
	return nil
}

func (p PartyRef) String() string {
	return fmt.Sprintf("%s:%s", p.Kind, p.ID)
}
