package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

// UpdateEntityRequest is the payload for replacing an entity's mutable
// fields. The customer identifier is fixed at creation.
type UpdateEntityRequest struct {
	Name              string         `json:"name"`
	Type              string         `json:"type"`
	Description       string         `json:"description"`
	CurrentLocationID *int64         `json:"current_location_id,omitempty"`
	ParentID          *int64         `json:"parent_id,omitempty"`
	ValidFrom         *time.Time     `json:"valid_from,omitempty"`
	ValidTo           *time.Time     `json:"valid_to,omitempty"`
	IsActive          *bool          `json:"is_active,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// EntityService updates and removes entities.
type EntityService struct {
	store inventory.Store
}

// NewEntityService constructs an entity service.
func NewEntityService(store inventory.Store) (*EntityService, error) {
	if store == nil {
		return nil, errors.New("entity service: nil store")
	}
	return &EntityService{store: store}, nil
}

// Update replaces the mutable fields of a live entity and returns the
// refreshed view. An absent is_active keeps the stored value.
func (s *EntityService) Update(ctx context.Context, orgID string, kind inventory.EntityKind, id int64, req UpdateEntityRequest) (*inventory.EntityView, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", inventory.ErrValidation)
	}

	var view *inventory.EntityView
	err := s.store.WithinTx(ctx, func(entities inventory.EntityRepository, identifiers inventory.IdentifierRepository) error {
		entity, err := entities.GetByID(ctx, orgID, kind, id)
		if err != nil {
			return err
		}
		if entity == nil {
			return inventory.ErrEntityNotFound
		}

		entity.Name = req.Name
		entity.Type = req.Type
		entity.Description = req.Description
		switch kind {
		case inventory.KindAsset:
			entity.CurrentLocationID = req.CurrentLocationID
		case inventory.KindLocation:
			entity.ParentID = req.ParentID
		}
		entity.ValidFrom = req.ValidFrom
		entity.ValidTo = req.ValidTo
		if req.IsActive != nil {
			entity.IsActive = *req.IsActive
		}
		entity.Metadata = req.Metadata
		if err := entity.Validate(); err != nil {
			return fmt.Errorf("%w: %v", inventory.ErrValidation, err)
		}
		if err := entities.Update(ctx, entity); err != nil {
			return err
		}

		tags, err := identifiers.ListByEntity(ctx, orgID, entity.Ref())
		if err != nil {
			return err
		}
		assembled := inventory.NewEntityView(*entity, tags)
		view = &assembled
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Delete soft-deletes an entity and every identifier attached to it in
// one transaction. It reports whether a live entity was removed; a
// repeat call reports false without error.
func (s *EntityService) Delete(ctx context.Context, orgID string, kind inventory.EntityKind, id int64) (bool, error) {
	deleted := false
	err := s.store.WithinTx(ctx, func(entities inventory.EntityRepository, identifiers inventory.IdentifierRepository) error {
		affected, err := entities.SoftDelete(ctx, orgID, kind, id)
		if err != nil {
			return err
		}
		if !affected {
			return nil
		}
		deleted = true
		_, err = identifiers.RemoveByEntity(ctx, orgID, inventory.EntityRef{Kind: kind, ID: id})
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
