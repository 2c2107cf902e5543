package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

// IdentifierRepository is an in-memory repository for tag identifiers.
type IdentifierRepository struct {
	store *Store
}

// Add inserts a new identifier, enforcing live (org, type, value)
// uniqueness the way the database constraint does.
func (r *IdentifierRepository) Add(ctx context.Context, identifier *inventory.TagIdentifier) error {
	_ = ctx
	if identifier == nil {
		return errors.New("identifier repo: nil identifier")
	}
	if err := identifier.Validate(); err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.identifiers {
		if existing.DeletedAt == nil &&
			existing.OrgID == identifier.OrgID &&
			existing.Type == identifier.Type &&
			existing.Value == identifier.Value {
			return inventory.ErrDuplicateIdentifier
		}
	}

	s.tagSeq++
	identifier.ID = s.tagSeq
	identifier.CreatedAt = time.Now().UTC()
	s.identifiers[identifier.ID] = identifier.Clone()
	return nil
}

// Remove soft-deletes the identifier and reports whether a live row was
// affected.
func (r *IdentifierRepository) Remove(ctx context.Context, orgID string, id int64) (bool, error) {
	_ = ctx
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	identifier := s.identifiers[id]
	if identifier == nil || identifier.DeletedAt != nil || identifier.OrgID != orgID {
		return false, nil
	}
	now := time.Now().UTC()
	identifier.DeletedAt = &now
	return true, nil
}

// ListByEntity returns the live identifiers attached to one entity,
// ordered by id.
func (r *IdentifierRepository) ListByEntity(ctx context.Context, orgID string, ref inventory.EntityRef) ([]inventory.TagIdentifier, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveByOwner(orgID, ref), nil
}

// ListByEntities returns the live identifiers for a batch of entities.
// Every requested ref maps to a slice, empty when it has no identifiers.
func (r *IdentifierRepository) ListByEntities(ctx context.Context, orgID string, refs []inventory.EntityRef) (map[inventory.EntityRef][]inventory.TagIdentifier, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[inventory.EntityRef][]inventory.TagIdentifier, len(refs))
	for _, ref := range refs {
		if _, seen := result[ref]; seen {
			continue
		}
		result[ref] = s.liveByOwner(orgID, ref)
	}
	return result, nil
}

// LookupByValue returns the live identifier with the given type and
// value, or nil when absent.
func (r *IdentifierRepository) LookupByValue(ctx context.Context, orgID string, identifierType inventory.IdentifierType, value string) (*inventory.TagIdentifier, error) {
	_ = ctx
	if value == "" {
		return nil, errors.New("identifier repo: empty value")
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, identifier := range s.identifiers {
		if identifier.DeletedAt == nil &&
			identifier.OrgID == orgID &&
			identifier.Type == identifierType &&
			identifier.Value == value {
			return identifier.Clone(), nil
		}
	}
	return nil, nil
}

// RemoveByEntity soft-deletes every live identifier attached to one
// entity and returns the number removed.
func (r *IdentifierRepository) RemoveByEntity(ctx context.Context, orgID string, ref inventory.EntityRef) (int, error) {
	_ = ctx
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	removed := 0
	for _, identifier := range s.identifiers {
		if identifier.DeletedAt != nil || identifier.OrgID != orgID {
			continue
		}
		owner, err := identifier.Owner()
		if err != nil || owner != ref {
			continue
		}
		deletedAt := now
		identifier.DeletedAt = &deletedAt
		removed++
	}
	return removed, nil
}

// liveByOwner collects live identifiers for one owner, ordered by id.
// Callers hold the store lock.
func (s *Store) liveByOwner(orgID string, ref inventory.EntityRef) []inventory.TagIdentifier {
	matches := make([]inventory.TagIdentifier, 0, 4)
	for _, identifier := range s.identifiers {
		if identifier.DeletedAt != nil || identifier.OrgID != orgID {
			continue
		}
		owner, err := identifier.Owner()
		if err != nil || owner != ref {
			continue
		}
		matches = append(matches, *identifier.Clone())
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches
}
