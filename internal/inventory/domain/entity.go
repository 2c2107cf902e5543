package inventory

import (
	"errors"
	"strings"
	"time"
)

// EntityKind discriminates the two trackable entity kinds.
type EntityKind string

const (
	KindAsset    EntityKind = "asset"
	KindLocation EntityKind = "location"
)

// NormalizeEntityKind validates and normalizes a kind string.
func NormalizeEntityKind(value string) (EntityKind, bool) {
	switch EntityKind(strings.ToLower(strings.TrimSpace(value))) {
	case KindAsset:
		return KindAsset, true
	case KindLocation:
		return KindLocation, true
	default:
		return "", false
	}
}

// EntityRef names exactly one entity across both kinds.
type EntityRef struct {
	Kind EntityKind
	ID   int64
}

// Entity is an asset or location record. Assets and locations share one
// shape; Kind selects which table backs the row and which of
// CurrentLocationID / ParentID is meaningful.
type Entity struct {
	ID                 int64
	OrgID              string
	Kind               EntityKind
	CustomerIdentifier string
	Name               string
	Type               string
	Description        string
	CurrentLocationID  *int64
	ParentID           *int64
	ValidFrom          *time.Time
	ValidTo            *time.Time
	IsActive           bool
	Metadata           map[string]any
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          *time.Time
}

// Ref returns the entity's reference.
func (e Entity) Ref() EntityRef {
	return EntityRef{Kind: e.Kind, ID: e.ID}
}

// Validate checks entity invariants.
func (e Entity) Validate() error {
	if e.OrgID == "" {
		return errors.New("entity: empty org id")
	}
	if _, ok := NormalizeEntityKind(string(e.Kind)); !ok {
		return ErrInvalidEntityKind
	}
	if e.CustomerIdentifier == "" {
		return errors.New("entity: empty customer identifier")
	}
	if e.Name == "" {
		return errors.New("entity: empty name")
	}
	if e.Kind == KindAsset && e.ParentID != nil {
		return errors.New("entity: parent_id is only valid for locations")
	}
	if e.Kind == KindLocation && e.CurrentLocationID != nil {
		return errors.New("entity: current_location_id is only valid for assets")
	}
	if e.ValidFrom != nil && e.ValidTo != nil && !e.ValidTo.After(*e.ValidFrom) {
		return errors.New("entity: valid_to must be after valid_from")
	}
	return nil
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	out := *e
	out.CurrentLocationID = cloneInt64(e.CurrentLocationID)
	out.ParentID = cloneInt64(e.ParentID)
	out.ValidFrom = cloneTime(e.ValidFrom)
	out.ValidTo = cloneTime(e.ValidTo)
	out.DeletedAt = cloneTime(e.DeletedAt)
	if e.Metadata != nil {
		out.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

func cloneInt64(value *int64) *int64 {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
