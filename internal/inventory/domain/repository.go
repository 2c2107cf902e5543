package inventory

import "context"

// EntityRepository manages asset and location persistence.
type EntityRepository interface {
	// Create inserts a new entity and fills its generated fields.
	Create(ctx context.Context, entity *Entity) error
	// GetByID returns the live entity, or nil when absent.
	GetByID(ctx context.Context, orgID string, kind EntityKind, id int64) (*Entity, error)
	// GetByCustomerIdentifier returns the live entity with the given
	// customer identifier, or nil when absent.
	GetByCustomerIdentifier(ctx context.Context, orgID string, kind EntityKind, customerIdentifier string) (*Entity, error)
	// Update persists mutable fields of an existing entity. It returns
	// ErrEntityNotFound when no live row matches.
	Update(ctx context.Context, entity *Entity) error
	// SoftDelete marks the entity deleted. It reports whether a live row
	// was affected.
	SoftDelete(ctx context.Context, orgID string, kind EntityKind, id int64) (bool, error)
	// List returns live entities of one kind ordered by id.
	List(ctx context.Context, orgID string, kind EntityKind, limit, offset int) ([]Entity, error)
	// Count returns the number of live entities of one kind.
	Count(ctx context.Context, orgID string, kind EntityKind) (int, error)
}

// IdentifierRepository manages tag identifier persistence.
type IdentifierRepository interface {
	// Add inserts a new identifier and fills its generated fields.
	Add(ctx context.Context, identifier *TagIdentifier) error
	// Remove soft-deletes the identifier. It reports whether a live row
	// was affected, so a repeat call returns false without error.
	Remove(ctx context.Context, orgID string, id int64) (bool, error)
	// ListByEntity returns the live identifiers attached to one entity.
	ListByEntity(ctx context.Context, orgID string, ref EntityRef) ([]TagIdentifier, error)
	// ListByEntities returns the live identifiers for a batch of entities
	// in a bounded number of queries. Every requested ref is present in
	// the result, mapped to an empty slice when it has no identifiers.
	ListByEntities(ctx context.Context, orgID string, refs []EntityRef) (map[EntityRef][]TagIdentifier, error)
	// LookupByValue returns the live identifier with the given type and
	// value, or nil when absent.
	LookupByValue(ctx context.Context, orgID string, identifierType IdentifierType, value string) (*TagIdentifier, error)
	// RemoveByEntity soft-deletes every live identifier attached to one
	// entity and returns the number removed.
	RemoveByEntity(ctx context.Context, orgID string, ref EntityRef) (int, error)
}

// Store runs entity and identifier operations inside one atomic unit.
// The callback's repositories share a transaction; an error rolls back
// everything the callback did.
type Store interface {
	WithinTx(ctx context.Context, fn func(entities EntityRepository, identifiers IdentifierRepository) error) error
}
