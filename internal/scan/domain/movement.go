package scan

import (
	"context"
	"errors"
	"time"
)

// Movement records one asset location change observed by a reader.
// Rows are append-only; the asset's current location lives on the
// asset itself.
type Movement struct {
	ID             int64
	OrgID          string
	AssetID        int64
	FromLocationID *int64
	ToLocationID   *int64
	TagType        string
	TagValue       string
	ReaderID       string
	ObservedAt     time.Time
	CreatedAt      time.Time
}

// Validate checks required fields before persistence.
func (m *Movement) Validate() error {
	if m == nil {
		return errors.New("scan: nil movement")
	}
	if m.OrgID == "" {
		return errors.New("scan: org id required")
	}
	if m.AssetID <= 0 {
		return errors.New("scan: asset id required")
	}
	if m.ObservedAt.IsZero() {
		return errors.New("scan: observed_at required")
	}
	return nil
}

// MovementRepository persists movement history.
type MovementRepository interface {
	Append(ctx context.Context, movement *Movement) error
	// ListByAsset returns the most recent movements first.
	ListByAsset(ctx context.Context, orgID string, assetID int64, limit int) ([]Movement, error)
}
