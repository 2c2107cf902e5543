package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
	"github.com/trakrf/platform/internal/observability/metrics"
	scan "github.com/trakrf/platform/internal/scan/domain"
)

// Event is one decoded reader observation. Readers authenticate with
// the shared ingest secret and name their org in the payload.
type Event struct {
	OrgID      string
	Type       string
	Value      string
	Location   string
	ReaderID   string
	ObservedAt time.Time
}

// Result reports what a scan resolved to.
type Result struct {
	Matched  bool
	Kind     inventory.EntityKind
	EntityID int64
	Moved    bool
	From     *int64
	To       *int64
}

// Service resolves scans against the identifier registry and keeps
// asset locations current.
type Service struct {
	entities    inventory.EntityRepository
	identifiers inventory.IdentifierRepository
	movements   scan.MovementRepository
	logger      *log.Logger
}

// NewService constructs a Service.
func NewService(entities inventory.EntityRepository, identifiers inventory.IdentifierRepository, movements scan.MovementRepository, logger *log.Logger) (*Service, error) {
	if entities == nil || identifiers == nil {
		return nil, errors.New("scan service: inventory repositories required")
	}
	if movements == nil {
		return nil, errors.New("scan service: movement repository required")
	}
	return &Service{
		entities:    entities,
		identifiers: identifiers,
		movements:   movements,
		logger:      logger,
	}, nil
}

// HandleScan resolves a tag observation. Asset tags seen at a known
// location move the asset there and append a movement row; location
// tags and repeat sightings at the current location are acknowledged
// without movement. An unknown tag yields Matched == false, not an
// error.
func (s *Service) HandleScan(ctx context.Context, event Event) (*Result, error) {
	start := time.Now()
	result, err := s.handleScan(ctx, event)
	switch {
	case err != nil:
		metrics.ObserveIngest(metrics.ResultError, time.Since(start))
	case !result.Matched:
		metrics.IncIngestError("unknown_tag")
		metrics.ObserveIngest("unmatched", time.Since(start))
	case result.Moved:
		metrics.ObserveIngest("moved", time.Since(start))
	default:
		metrics.ObserveIngest("acknowledged", time.Since(start))
	}
	return result, err
}

func (s *Service) handleScan(ctx context.Context, event Event) (*Result, error) {
	if event.OrgID == "" {
		return nil, errors.New("scan service: org id required")
	}
	tagType, ok := inventory.NormalizeIdentifierType(event.Type)
	if !ok {
		return nil, inventory.ErrInvalidIdentifierType
	}
	if event.Value == "" {
		return nil, errors.New("scan service: tag value required")
	}

	identifier, err := s.identifiers.LookupByValue(ctx, event.OrgID, tagType, event.Value)
	if err != nil {
		return nil, err
	}
	if identifier == nil {
		return &Result{Matched: false}, nil
	}
	ref, err := identifier.Owner()
	if err != nil {
		return nil, err
	}

	result := &Result{Matched: true, Kind: ref.Kind, EntityID: ref.ID}
	if ref.Kind == inventory.KindLocation {
		// A scanned location tag confirms reader placement; nothing moves.
		return result, nil
	}

	asset, err := s.entities.GetByID(ctx, event.OrgID, inventory.KindAsset, ref.ID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		// Identifier outlived its entity; treat as unresolved.
		return &Result{Matched: false}, nil
	}

	if event.Location == "" {
		return result, nil
	}
	location, err := s.entities.GetByCustomerIdentifier(ctx, event.OrgID, inventory.KindLocation, event.Location)
	if err != nil {
		return nil, err
	}
	if location == nil {
		s.logf("event=scan_unknown_location org_id=%s location=%q tag=%s", event.OrgID, event.Location, event.Value)
		return result, nil
	}

	result.From = asset.CurrentLocationID
	result.To = &location.ID
	if asset.CurrentLocationID != nil && *asset.CurrentLocationID == location.ID {
		return result, nil
	}

	from := asset.CurrentLocationID
	asset.CurrentLocationID = &location.ID
	if err := s.entities.Update(ctx, asset); err != nil {
		return nil, fmt.Errorf("move asset: %w", err)
	}

	observedAt := event.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}
	movement := &scan.Movement{
		OrgID:          event.OrgID,
		AssetID:        asset.ID,
		FromLocationID: from,
		ToLocationID:   &location.ID,
		TagType:        string(tagType),
		TagValue:       event.Value,
		ReaderID:       event.ReaderID,
		ObservedAt:     observedAt,
	}
	if err := s.movements.Append(ctx, movement); err != nil {
		return nil, fmt.Errorf("record movement: %w", err)
	}

	result.Moved = true
	s.logf("event=asset_moved org_id=%s asset_id=%d to=%d reader=%s", event.OrgID, asset.ID, location.ID, event.ReaderID)
	return result, nil
}

// History returns recent movements for one asset, newest first.
func (s *Service) History(ctx context.Context, orgID string, assetID int64, limit int) ([]scan.Movement, error) {
	if s == nil || s.movements == nil {
		return nil, errors.New("scan service: nil")
	}
	return s.movements.ListByAsset(ctx, orgID, assetID, limit)
}

func (s *Service) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
