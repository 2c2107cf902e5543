package application

import (
	"context"
	"errors"
	"time"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
	"github.com/trakrf/platform/internal/observability/metrics"
)

// ViewAssembler joins entities with their identifiers for read paths.
// Listing a page costs one entity query plus at most one identifier
// query per kind, regardless of page size.
type ViewAssembler struct {
	entities    inventory.EntityRepository
	identifiers inventory.IdentifierRepository
}

// NewViewAssembler constructs a view assembler.
func NewViewAssembler(entities inventory.EntityRepository, identifiers inventory.IdentifierRepository) (*ViewAssembler, error) {
	if entities == nil {
		return nil, errors.New("view assembler: nil entity repository")
	}
	if identifiers == nil {
		return nil, errors.New("view assembler: nil identifier repository")
	}
	return &ViewAssembler{entities: entities, identifiers: identifiers}, nil
}

// GetView returns one entity with its identifiers, or nil when no live
// entity matches within the caller's org.
func (a *ViewAssembler) GetView(ctx context.Context, orgID string, kind inventory.EntityKind, id int64) (*inventory.EntityView, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveViewRequest("get", result, time.Since(start))
	}()

	entity, err := a.entities.GetByID(ctx, orgID, kind, id)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if entity == nil {
		return nil, nil
	}
	tags, err := a.identifiers.ListByEntity(ctx, orgID, entity.Ref())
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	view := inventory.NewEntityView(*entity, tags)
	return &view, nil
}

// ListViews returns one page of views in entity order plus the org-wide
// live total for the kind.
func (a *ViewAssembler) ListViews(ctx context.Context, orgID string, kind inventory.EntityKind, limit, offset int) ([]inventory.EntityView, int, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveViewRequest("list", result, time.Since(start))
	}()

	entities, err := a.entities.List(ctx, orgID, kind, limit, offset)
	if err != nil {
		result = metrics.ResultError
		return nil, 0, err
	}
	total, err := a.entities.Count(ctx, orgID, kind)
	if err != nil {
		result = metrics.ResultError
		return nil, 0, err
	}

	views := make([]inventory.EntityView, 0, len(entities))
	if len(entities) == 0 {
		return views, total, nil
	}

	refs := make([]inventory.EntityRef, 0, len(entities))
	for _, entity := range entities {
		refs = append(refs, entity.Ref())
	}
	byRef, err := a.identifiers.ListByEntities(ctx, orgID, refs)
	if err != nil {
		result = metrics.ResultError
		return nil, 0, err
	}
	for _, entity := range entities {
		views = append(views, inventory.NewEntityView(entity, byRef[entity.Ref()]))
	}
	return views, total, nil
}
