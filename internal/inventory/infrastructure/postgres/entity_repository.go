package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

const (
	defaultAssetsTable    = "assets"
	defaultLocationsTable = "locations"
)

// EntityRepository is a Postgres implementation for assets and locations.
// The two kinds share one shape; Kind selects the backing table.
type EntityRepository struct {
	db             DBTX
	assetsTable    string
	locationsTable string
}

// NewEntityRepository constructs a repository.
func NewEntityRepository(db DBTX, opts ...EntityOption) *EntityRepository {
	repo := &EntityRepository{
		db:             db,
		assetsTable:    defaultAssetsTable,
		locationsTable: defaultLocationsTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// EntityOption configures the repository.
type EntityOption func(*EntityRepository)

// WithAssetsTable overrides the default assets table name.
func WithAssetsTable(table string) EntityOption {
	return func(repo *EntityRepository) {
		if table != "" {
			repo.assetsTable = table
		}
	}
}

// WithLocationsTable overrides the default locations table name.
func WithLocationsTable(table string) EntityOption {
	return func(repo *EntityRepository) {
		if table != "" {
			repo.locationsTable = table
		}
	}
}

// tableFor resolves the backing table and the kind-specific column names:
// assets carry asset_type/current_location_id, locations carry
// location_type/parent_id.
func (r *EntityRepository) tableFor(kind inventory.EntityKind) (table, typeCol, refCol string, err error) {
	switch kind {
	case inventory.KindAsset:
		return r.assetsTable, "asset_type", "current_location_id", nil
	case inventory.KindLocation:
		return r.locationsTable, "location_type", "parent_id", nil
	default:
		return "", "", "", inventory.ErrInvalidEntityKind
	}
}

// Create inserts a new entity and fills its generated fields. A live row
// with the same customer identifier yields ErrDuplicateCustomerID.
func (r *EntityRepository) Create(ctx context.Context, entity *inventory.Entity) error {
	if r == nil || r.db == nil {
		return errors.New("entity repo: nil db")
	}
	if entity == nil {
		return errors.New("entity repo: nil entity")
	}
	if err := entity.Validate(); err != nil {
		return err
	}
	table, typeCol, refCol, err := r.tableFor(entity.Kind)
	if err != nil {
		return err
	}
	metadata, err := marshalMetadata(entity.Metadata)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	org_id,
	customer_identifier,
	name,
	%s,
	description,
	%s,
	valid_from,
	valid_to,
	is_active,
	metadata
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)
RETURNING id, created_at, updated_at`, table, typeCol, refCol)

	if err := r.db.QueryRowContext(
		ctx,
		query,
		entity.OrgID,
		entity.CustomerIdentifier,
		entity.Name,
		entity.Type,
		entity.Description,
		nullInt64(kindRef(entity)),
		nullTime(entity.ValidFrom),
		nullTime(entity.ValidTo),
		entity.IsActive,
		metadata,
	).Scan(&entity.ID, &entity.CreatedAt, &entity.UpdatedAt); err != nil {
		return mapConstraintError(err)
	}
	entity.CreatedAt = entity.CreatedAt.UTC()
	entity.UpdatedAt = entity.UpdatedAt.UTC()
	return nil
}

// GetByID loads the live entity, or nil when absent. Rows outside the
// caller's org are invisible.
func (r *EntityRepository) GetByID(ctx context.Context, orgID string, kind inventory.EntityKind, id int64) (*inventory.Entity, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("entity repo: nil db")
	}
	table, typeCol, refCol, err := r.tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT id, org_id, customer_identifier, name, %s, description, %s, valid_from, valid_to, is_active, metadata, created_at, updated_at
FROM %s
WHERE org_id = $1 AND id = $2 AND deleted_at IS NULL
LIMIT 1`, typeCol, refCol, table)

	entity, err := scanEntity(r.db.QueryRowContext(ctx, query, orgID, id), kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return entity, nil
}

// GetByCustomerIdentifier loads the live entity with the given customer
// identifier, or nil when absent.
func (r *EntityRepository) GetByCustomerIdentifier(ctx context.Context, orgID string, kind inventory.EntityKind, customerIdentifier string) (*inventory.Entity, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("entity repo: nil db")
	}
	if customerIdentifier == "" {
		return nil, errors.New("entity repo: empty customer identifier")
	}
	table, typeCol, refCol, err := r.tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT id, org_id, customer_identifier, name, %s, description, %s, valid_from, valid_to, is_active, metadata, created_at, updated_at
FROM %s
WHERE org_id = $1 AND customer_identifier = $2 AND deleted_at IS NULL
LIMIT 1`, typeCol, refCol, table)

	entity, err := scanEntity(r.db.QueryRowContext(ctx, query, orgID, customerIdentifier), kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return entity, nil
}

// Update persists the mutable fields of an existing entity. The customer
// identifier is fixed at creation and never updated.
func (r *EntityRepository) Update(ctx context.Context, entity *inventory.Entity) error {
	if r == nil || r.db == nil {
		return errors.New("entity repo: nil db")
	}
	if entity == nil {
		return errors.New("entity repo: nil entity")
	}
	if err := entity.Validate(); err != nil {
		return err
	}
	table, typeCol, refCol, err := r.tableFor(entity.Kind)
	if err != nil {
		return err
	}
	metadata, err := marshalMetadata(entity.Metadata)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
UPDATE %s SET
	name = $1,
	%s = $2,
	description = $3,
	%s = $4,
	valid_from = $5,
	valid_to = $6,
	is_active = $7,
	metadata = $8,
	updated_at = NOW()
WHERE org_id = $9 AND id = $10 AND deleted_at IS NULL
RETURNING updated_at`, table, typeCol, refCol)

	if err := r.db.QueryRowContext(
		ctx,
		query,
		entity.Name,
		entity.Type,
		entity.Description,
		nullInt64(kindRef(entity)),
		nullTime(entity.ValidFrom),
		nullTime(entity.ValidTo),
		entity.IsActive,
		metadata,
		entity.OrgID,
		entity.ID,
	).Scan(&entity.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return inventory.ErrEntityNotFound
		}
		return mapConstraintError(err)
	}
	entity.UpdatedAt = entity.UpdatedAt.UTC()
	return nil
}

// SoftDelete marks the entity deleted. It reports whether a live row was
// affected.
func (r *EntityRepository) SoftDelete(ctx context.Context, orgID string, kind inventory.EntityKind, id int64) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("entity repo: nil db")
	}
	table, _, _, err := r.tableFor(kind)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`
UPDATE %s SET deleted_at = NOW(), updated_at = NOW()
WHERE org_id = $1 AND id = $2 AND deleted_at IS NULL`, table)

	result, err := r.db.ExecContext(ctx, query, orgID, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// List returns live entities of one kind ordered by id.
func (r *EntityRepository) List(ctx context.Context, orgID string, kind inventory.EntityKind, limit, offset int) ([]inventory.Entity, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("entity repo: nil db")
	}
	table, typeCol, refCol, err := r.tableFor(kind)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
SELECT id, org_id, customer_identifier, name, %s, description, %s, valid_from, valid_to, is_active, metadata, created_at, updated_at
FROM %s
WHERE org_id = $1 AND deleted_at IS NULL
ORDER BY id
LIMIT $2 OFFSET $3`, typeCol, refCol, table)

	rows, err := r.db.QueryContext(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := make([]inventory.Entity, 0, limit)
	for rows.Next() {
		entity, err := scanEntity(rows, kind)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *entity)
	}
	return entities, rows.Err()
}

// Count returns the number of live entities of one kind.
func (r *EntityRepository) Count(ctx context.Context, orgID string, kind inventory.EntityKind) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("entity repo: nil db")
	}
	table, _, _, err := r.tableFor(kind)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE org_id = $1 AND deleted_at IS NULL`, table)

	var count int
	if err := r.db.QueryRowContext(ctx, query, orgID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanEntity(row rowScanner, kind inventory.EntityKind) (*inventory.Entity, error) {
	var (
		entity   inventory.Entity
		ref      sql.NullInt64
		from, to sql.NullTime
		metadata []byte
	)
	if err := row.Scan(
		&entity.ID,
		&entity.OrgID,
		&entity.CustomerIdentifier,
		&entity.Name,
		&entity.Type,
		&entity.Description,
		&ref,
		&from,
		&to,
		&entity.IsActive,
		&metadata,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	); err != nil {
		return nil, err
	}
	entity.Kind = kind
	if ref.Valid {
		id := ref.Int64
		switch kind {
		case inventory.KindAsset:
			entity.CurrentLocationID = &id
		case inventory.KindLocation:
			entity.ParentID = &id
		}
	}
	if from.Valid {
		t := from.Time.UTC()
		entity.ValidFrom = &t
	}
	if to.Valid {
		t := to.Time.UTC()
		entity.ValidTo = &t
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &entity.Metadata); err != nil {
			return nil, fmt.Errorf("entity repo: decode metadata: %w", err)
		}
	}
	entity.CreatedAt = entity.CreatedAt.UTC()
	entity.UpdatedAt = entity.UpdatedAt.UTC()
	return &entity, nil
}

// kindRef picks the kind-specific reference column value: the current
// location for assets, the parent for locations.
func kindRef(entity *inventory.Entity) *int64 {
	if entity.Kind == inventory.KindAsset {
		return entity.CurrentLocationID
	}
	return entity.ParentID
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if len(metadata) == 0 {
		return []byte("{}"), nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("entity repo: encode metadata: %w", err)
	}
	return encoded, nil
}

func nullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value.UTC(), Valid: true}
}
