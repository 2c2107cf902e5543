package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	scan "github.com/trakrf/platform/internal/scan/domain"
)

const defaultMovementsTable = "asset_movements"

// MovementRepository is a Postgres implementation of
// scan.MovementRepository.
type MovementRepository struct {
	db    *sql.DB
	table string
}

// NewMovementRepository constructs a repository.
func NewMovementRepository(db *sql.DB, opts ...MovementOption) *MovementRepository {
	repo := &MovementRepository{db: db, table: defaultMovementsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// MovementOption configures the repository.
type MovementOption func(*MovementRepository)

// WithMovementsTable overrides the default table name.
func WithMovementsTable(table string) MovementOption {
	return func(repo *MovementRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Append inserts one movement row and fills its generated fields.
func (r *MovementRepository) Append(ctx context.Context, movement *scan.Movement) error {
	if r == nil || r.db == nil {
		return errors.New("movement repo: nil db")
	}
	if err := movement.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	org_id, asset_id, from_location_id, to_location_id,
	tag_type, tag_value, reader_id, observed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at`, r.table)

	err := r.db.QueryRowContext(ctx, query,
		movement.OrgID,
		movement.AssetID,
		nullInt64(movement.FromLocationID),
		nullInt64(movement.ToLocationID),
		movement.TagType,
		movement.TagValue,
		movement.ReaderID,
		movement.ObservedAt.UTC(),
	).Scan(&movement.ID, &movement.CreatedAt)
	if err != nil {
		return fmt.Errorf("append movement: %w", err)
	}
	movement.CreatedAt = movement.CreatedAt.UTC()
	return nil
}

// ListByAsset returns recent movements for one asset, newest first.
func (r *MovementRepository) ListByAsset(ctx context.Context, orgID string, assetID int64, limit int) ([]scan.Movement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("movement repo: nil db")
	}
	if orgID == "" {
		return nil, errors.New("movement repo: org id required")
	}
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
SELECT id, org_id, asset_id, from_location_id, to_location_id,
	tag_type, tag_value, reader_id, observed_at, created_at
FROM %s
WHERE org_id = $1 AND asset_id = $2
ORDER BY observed_at DESC, id DESC
LIMIT $3`, r.table)

	rows, err := r.db.QueryContext(ctx, query, orgID, assetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	var movements []scan.Movement
	for rows.Next() {
		var (
			movement scan.Movement
			from     sql.NullInt64
			to       sql.NullInt64
		)
		err := rows.Scan(
			&movement.ID, &movement.OrgID, &movement.AssetID, &from, &to,
			&movement.TagType, &movement.TagValue, &movement.ReaderID,
			&movement.ObservedAt, &movement.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		if from.Valid {
			v := from.Int64
			movement.FromLocationID = &v
		}
		if to.Valid {
			v := to.Int64
			movement.ToLocationID = &v
		}
		movement.ObservedAt = movement.ObservedAt.UTC()
		movement.CreatedAt = movement.CreatedAt.UTC()
		movements = append(movements, movement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return movements, nil
}

func nullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}
