package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

// EntityRepository is an in-memory repository for assets and locations.
type EntityRepository struct {
	store *Store
}

// Create inserts a new entity, enforcing live customer-identifier
// uniqueness per kind the way the database constraint does.
func (r *EntityRepository) Create(ctx context.Context, entity *inventory.Entity) error {
	_ = ctx
	if entity == nil {
		return errors.New("entity repo: nil entity")
	}
	if err := entity.Validate(); err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.entities[entity.Kind] {
		if existing.DeletedAt == nil &&
			existing.OrgID == entity.OrgID &&
			existing.CustomerIdentifier == entity.CustomerIdentifier {
			return inventory.ErrDuplicateCustomerID
		}
	}

	s.entitySeq[entity.Kind]++
	entity.ID = s.entitySeq[entity.Kind]
	now := time.Now().UTC()
	entity.CreatedAt = now
	entity.UpdatedAt = now
	s.entities[entity.Kind][entity.ID] = entity.Clone()
	return nil
}

// GetByID returns the live entity, or nil when absent.
func (r *EntityRepository) GetByID(ctx context.Context, orgID string, kind inventory.EntityKind, id int64) (*inventory.Entity, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity := s.entities[kind][id]
	if entity == nil || entity.DeletedAt != nil || entity.OrgID != orgID {
		return nil, nil
	}
	return entity.Clone(), nil
}

// GetByCustomerIdentifier returns the live entity with the given customer
// identifier, or nil when absent.
func (r *EntityRepository) GetByCustomerIdentifier(ctx context.Context, orgID string, kind inventory.EntityKind, customerIdentifier string) (*inventory.Entity, error) {
	_ = ctx
	if customerIdentifier == "" {
		return nil, errors.New("entity repo: empty customer identifier")
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entity := range s.entities[kind] {
		if entity.DeletedAt == nil && entity.OrgID == orgID && entity.CustomerIdentifier == customerIdentifier {
			return entity.Clone(), nil
		}
	}
	return nil, nil
}

// Update persists mutable fields of an existing live entity. The customer
// identifier is fixed at creation.
func (r *EntityRepository) Update(ctx context.Context, entity *inventory.Entity) error {
	_ = ctx
	if entity == nil {
		return errors.New("entity repo: nil entity")
	}
	if err := entity.Validate(); err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.entities[entity.Kind][entity.ID]
	if stored == nil || stored.DeletedAt != nil || stored.OrgID != entity.OrgID {
		return inventory.ErrEntityNotFound
	}

	stored.Name = entity.Name
	stored.Type = entity.Type
	stored.Description = entity.Description
	if entity.Kind == inventory.KindAsset {
		stored.CurrentLocationID = cloneID(entity.CurrentLocationID)
	} else {
		stored.ParentID = cloneID(entity.ParentID)
	}
	stored.ValidFrom = cloneTimestamp(entity.ValidFrom)
	stored.ValidTo = cloneTimestamp(entity.ValidTo)
	stored.IsActive = entity.IsActive
	stored.Metadata = entity.Clone().Metadata
	stored.UpdatedAt = time.Now().UTC()

	entity.CustomerIdentifier = stored.CustomerIdentifier
	entity.CreatedAt = stored.CreatedAt
	entity.UpdatedAt = stored.UpdatedAt
	return nil
}

// SoftDelete marks the entity deleted and reports whether a live row was
// affected.
func (r *EntityRepository) SoftDelete(ctx context.Context, orgID string, kind inventory.EntityKind, id int64) (bool, error) {
	_ = ctx
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	entity := s.entities[kind][id]
	if entity == nil || entity.DeletedAt != nil || entity.OrgID != orgID {
		return false, nil
	}
	now := time.Now().UTC()
	entity.DeletedAt = &now
	entity.UpdatedAt = now
	return true, nil
}

// List returns live entities of one kind ordered by id.
func (r *EntityRepository) List(ctx context.Context, orgID string, kind inventory.EntityKind, limit, offset int) ([]inventory.Entity, error) {
	_ = ctx
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	s := r.store
	s.mu.RLock()
	live := make([]*inventory.Entity, 0, len(s.entities[kind]))
	for _, entity := range s.entities[kind] {
		if entity.DeletedAt == nil && entity.OrgID == orgID {
			live = append(live, entity)
		}
	}
	s.mu.RUnlock()

	sort.Slice(live, func(i, j int) bool { return live[i].ID < live[j].ID })

	if offset >= len(live) {
		return []inventory.Entity{}, nil
	}
	end := offset + limit
	if end > len(live) {
		end = len(live)
	}
	page := make([]inventory.Entity, 0, end-offset)
	for _, entity := range live[offset:end] {
		page = append(page, *entity.Clone())
	}
	return page, nil
}

// Count returns the number of live entities of one kind.
func (r *EntityRepository) Count(ctx context.Context, orgID string, kind inventory.EntityKind) (int, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, entity := range s.entities[kind] {
		if entity.DeletedAt == nil && entity.OrgID == orgID {
			count++
		}
	}
	return count, nil
}

func cloneID(value *int64) *int64 {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneTimestamp(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
