package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	scan "github.com/trakrf/platform/internal/scan/domain"
)

// MovementRepository is an in-memory scan.MovementRepository for tests.
type MovementRepository struct {
	mu        sync.RWMutex
	seq       int64
	movements []scan.Movement
}

// NewMovementRepository constructs an empty repository.
func NewMovementRepository() *MovementRepository {
	return &MovementRepository{}
}

// Append stores one movement.
func (r *MovementRepository) Append(ctx context.Context, movement *scan.Movement) error {
	_ = ctx
	if err := movement.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	movement.ID = r.seq
	movement.CreatedAt = time.Now().UTC()
	r.movements = append(r.movements, *movement)
	return nil
}

// ListByAsset returns recent movements newest first.
func (r *MovementRepository) ListByAsset(ctx context.Context, orgID string, assetID int64, limit int) ([]scan.Movement, error) {
	_ = ctx
	if limit <= 0 {
		limit = 50
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []scan.Movement
	for _, movement := range r.movements {
		if movement.OrgID == orgID && movement.AssetID == assetID {
			result = append(result, movement)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ObservedAt.Equal(result[j].ObservedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].ObservedAt.After(result[j].ObservedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
