package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
	"github.com/trakrf/platform/internal/observability/metrics"
)

// CreateEntityRequest is the payload for creating one entity together
// with its identifiers.
type CreateEntityRequest struct {
	CustomerIdentifier string            `json:"customer_identifier"`
	Name               string            `json:"name"`
	Type               string            `json:"type"`
	Description        string            `json:"description"`
	CurrentLocationID  *int64            `json:"current_location_id,omitempty"`
	ParentID           *int64            `json:"parent_id,omitempty"`
	ValidFrom          *time.Time        `json:"valid_from,omitempty"`
	ValidTo            *time.Time        `json:"valid_to,omitempty"`
	IsActive           *bool             `json:"is_active,omitempty"`
	Metadata           map[string]any    `json:"metadata,omitempty"`
	Identifiers        []IdentifierInput `json:"identifiers"`
}

// IdentifierInput is one identifier to attach at creation time.
type IdentifierInput struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// CreationService creates entities and their identifiers as one atomic
// unit: when any identifier fails, nothing persists.
type CreationService struct {
	store inventory.Store
}

// NewCreationService constructs a creation service.
func NewCreationService(store inventory.Store) (*CreationService, error) {
	if store == nil {
		return nil, errors.New("creation service: nil store")
	}
	return &CreationService{store: store}, nil
}

// Create persists one entity plus its identifiers inside a single
// transaction. Duplicate detection for identifier values happens at the
// database constraint, so two racing requests cannot both win; the loser
// surfaces ErrDuplicateIdentifier.
func (s *CreationService) Create(ctx context.Context, orgID string, kind inventory.EntityKind, req CreateEntityRequest) (*inventory.EntityView, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveEntityCreate(string(kind), result, time.Since(start))
	}()

	entity, inputs, err := buildCreate(orgID, kind, req)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	created := make([]inventory.TagIdentifier, 0, len(inputs))
	err = s.store.WithinTx(ctx, func(entities inventory.EntityRepository, identifiers inventory.IdentifierRepository) error {
		if err := entities.Create(ctx, entity); err != nil {
			return err
		}
		for _, input := range inputs {
			tag := inventory.TagIdentifier{
				OrgID:    orgID,
				Type:     input.identifierType,
				Value:    input.value,
				IsActive: true,
			}
			if err := tag.SetOwner(entity.Ref()); err != nil {
				return err
			}
			if err := identifiers.Add(ctx, &tag); err != nil {
				return err
			}
			created = append(created, tag)
		}
		return nil
	})
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	view := inventory.NewEntityView(*entity, created)
	return &view, nil
}

type identifierSpec struct {
	identifierType inventory.IdentifierType
	value          string
}

// buildCreate validates the request and normalizes it into a domain
// entity plus identifier specs. In-request duplicate identifier pairs
// fail here, before any write.
func buildCreate(orgID string, kind inventory.EntityKind, req CreateEntityRequest) (*inventory.Entity, []identifierSpec, error) {
	if orgID == "" {
		return nil, nil, fmt.Errorf("%w: missing org id", inventory.ErrValidation)
	}
	if _, ok := inventory.NormalizeEntityKind(string(kind)); !ok {
		return nil, nil, inventory.ErrInvalidEntityKind
	}
	if req.CustomerIdentifier == "" {
		return nil, nil, fmt.Errorf("%w: customer_identifier is required", inventory.ErrValidation)
	}
	if req.Name == "" {
		return nil, nil, fmt.Errorf("%w: name is required", inventory.ErrValidation)
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	entity := &inventory.Entity{
		OrgID:              orgID,
		Kind:               kind,
		CustomerIdentifier: req.CustomerIdentifier,
		Name:               req.Name,
		Type:               req.Type,
		Description:        req.Description,
		ValidFrom:          req.ValidFrom,
		ValidTo:            req.ValidTo,
		IsActive:           isActive,
		Metadata:           req.Metadata,
	}
	switch kind {
	case inventory.KindAsset:
		entity.CurrentLocationID = req.CurrentLocationID
	case inventory.KindLocation:
		entity.ParentID = req.ParentID
	}
	if err := entity.Validate(); err != nil {
		if errors.Is(err, inventory.ErrInvalidEntityKind) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", inventory.ErrValidation, err)
	}

	inputs := make([]identifierSpec, 0, len(req.Identifiers))
	seen := make(map[identifierSpec]struct{}, len(req.Identifiers))
	for _, input := range req.Identifiers {
		identifierType, ok := inventory.NormalizeIdentifierType(input.Type)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", inventory.ErrInvalidIdentifierType, input.Type)
		}
		if input.Value == "" {
			return nil, nil, fmt.Errorf("%w: identifier value is required", inventory.ErrValidation)
		}
		spec := identifierSpec{identifierType: identifierType, value: input.Value}
		if _, dup := seen[spec]; dup {
			return nil, nil, fmt.Errorf("%w: %s %q repeated in request", inventory.ErrDuplicateIdentifier, identifierType, input.Value)
		}
		seen[spec] = struct{}{}
		inputs = append(inputs, spec)
	}
	return entity, inputs, nil
}
