package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
	"github.com/trakrf/platform/internal/observability/metrics"
)

// IdentifierService attaches, removes, and resolves tag identifiers on
// existing entities.
type IdentifierService struct {
	entities    inventory.EntityRepository
	identifiers inventory.IdentifierRepository
}

// NewIdentifierService constructs an identifier service.
func NewIdentifierService(entities inventory.EntityRepository, identifiers inventory.IdentifierRepository) (*IdentifierService, error) {
	if entities == nil {
		return nil, errors.New("identifier service: nil entity repository")
	}
	if identifiers == nil {
		return nil, errors.New("identifier service: nil identifier repository")
	}
	return &IdentifierService{entities: entities, identifiers: identifiers}, nil
}

// Attach binds a new identifier to an existing entity. The target must
// be a live entity in the caller's org; the value must be unused among
// live identifiers, enforced by the database constraint.
func (s *IdentifierService) Attach(ctx context.Context, orgID string, ref inventory.EntityRef, input IdentifierInput) (*inventory.TagIdentifier, error) {
	result := metrics.ResultSuccess
	defer func() {
		metrics.IncIdentifierOp("add", result)
	}()

	identifierType, ok := inventory.NormalizeIdentifierType(input.Type)
	if !ok {
		result = metrics.ResultError
		return nil, fmt.Errorf("%w: %q", inventory.ErrInvalidIdentifierType, input.Type)
	}
	if input.Value == "" {
		result = metrics.ResultError
		return nil, fmt.Errorf("%w: identifier value is required", inventory.ErrValidation)
	}

	entity, err := s.entities.GetByID(ctx, orgID, ref.Kind, ref.ID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if entity == nil {
		result = metrics.ResultError
		return nil, inventory.ErrEntityNotFound
	}

	tag := inventory.TagIdentifier{
		OrgID:    orgID,
		Type:     identifierType,
		Value:    input.Value,
		IsActive: true,
	}
	if err := tag.SetOwner(entity.Ref()); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if err := s.identifiers.Add(ctx, &tag); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	return &tag, nil
}

// Remove soft-deletes one identifier. The first call reports true, any
// repeat reports false without error.
func (s *IdentifierService) Remove(ctx context.Context, orgID string, id int64) (bool, error) {
	result := metrics.ResultSuccess
	defer func() {
		metrics.IncIdentifierOp("remove", result)
	}()

	removed, err := s.identifiers.Remove(ctx, orgID, id)
	if err != nil {
		result = metrics.ResultError
		return false, err
	}
	return removed, nil
}

// Lookup resolves a tag value to the entity it is bound to, or nil when
// no live identifier matches in the caller's org.
func (s *IdentifierService) Lookup(ctx context.Context, orgID, typeValue, tagValue string) (*inventory.EntityView, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveLookup(result, time.Since(start))
	}()

	identifierType, ok := inventory.NormalizeIdentifierType(typeValue)
	if !ok {
		result = metrics.ResultError
		return nil, fmt.Errorf("%w: %q", inventory.ErrInvalidIdentifierType, typeValue)
	}
	if tagValue == "" {
		result = metrics.ResultError
		return nil, fmt.Errorf("%w: identifier value is required", inventory.ErrValidation)
	}

	identifier, err := s.identifiers.LookupByValue(ctx, orgID, identifierType, tagValue)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if identifier == nil {
		return nil, nil
	}
	owner, err := identifier.Owner()
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	entity, err := s.entities.GetByID(ctx, orgID, owner.Kind, owner.ID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if entity == nil {
		// Identifier outlived its entity; treat as unresolved.
		return nil, nil
	}
	tags, err := s.identifiers.ListByEntity(ctx, orgID, owner)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	view := inventory.NewEntityView(*entity, tags)
	return &view, nil
}
