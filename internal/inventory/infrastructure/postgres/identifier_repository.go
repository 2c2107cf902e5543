package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

const defaultIdentifiersTable = "tag_identifiers"

// IdentifierRepository is a Postgres implementation for tag identifiers.
type IdentifierRepository struct {
	db    DBTX
	table string
}

// NewIdentifierRepository constructs a repository.
func NewIdentifierRepository(db DBTX, opts ...IdentifierOption) *IdentifierRepository {
	repo := &IdentifierRepository{db: db, table: defaultIdentifiersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// IdentifierOption configures the repository.
type IdentifierOption func(*IdentifierRepository)

// WithIdentifiersTable overrides the default table name.
func WithIdentifiersTable(table string) IdentifierOption {
	return func(repo *IdentifierRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Add inserts a new identifier and fills its generated fields. A live row
// with the same (org, type, value) yields ErrDuplicateIdentifier.
func (r *IdentifierRepository) Add(ctx context.Context, identifier *inventory.TagIdentifier) error {
	if r == nil || r.db == nil {
		return errors.New("identifier repo: nil db")
	}
	if identifier == nil {
		return errors.New("identifier repo: nil identifier")
	}
	if err := identifier.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	org_id,
	tag_type,
	tag_value,
	asset_id,
	location_id,
	is_active
) VALUES (
	$1, $2, $3, $4, $5, $6
)
RETURNING id, created_at`, r.table)

	if err := r.db.QueryRowContext(
		ctx,
		query,
		identifier.OrgID,
		string(identifier.Type),
		identifier.Value,
		nullInt64(identifier.AssetID),
		nullInt64(identifier.LocationID),
		identifier.IsActive,
	).Scan(&identifier.ID, &identifier.CreatedAt); err != nil {
		return mapConstraintError(err)
	}
	identifier.CreatedAt = identifier.CreatedAt.UTC()
	return nil
}

// Remove soft-deletes the identifier. It reports whether a live row was
// affected, so a repeat call returns false without error.
func (r *IdentifierRepository) Remove(ctx context.Context, orgID string, id int64) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("identifier repo: nil db")
	}

	query := fmt.Sprintf(`
UPDATE %s SET deleted_at = NOW()
WHERE org_id = $1 AND id = $2 AND deleted_at IS NULL`, r.table)

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

// ListByEntity returns the live identifiers attached to one entity,
// ordered by id.
func (r *IdentifierRepository) ListByEntity(ctx context.Context, orgID string, ref inventory.EntityRef) ([]inventory.TagIdentifier, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("identifier repo: nil db")
	}
	ownerCol, err := ownerColumn(ref.Kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT id, org_id, tag_type, tag_value, asset_id, location_id, is_active, created_at
FROM %s
WHERE org_id = $1 AND %s = $2 AND deleted_at IS NULL
ORDER BY id`, r.table, ownerCol)

	rows, err := r.db.QueryContext(ctx, query, orgID, ref.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	identifiers := make([]inventory.TagIdentifier, 0, 4)
	for rows.Next() {
		identifier, err := scanIdentifier(rows)
		if err != nil {
			return nil, err
		}
		identifiers = append(identifiers, *identifier)
	}
	return identifiers, rows.Err()
}

// ListByEntities returns the live identifiers for a batch of entities in
// at most one query per kind. Every requested ref maps to a slice, empty
// when the entity has no identifiers.
func (r *IdentifierRepository) ListByEntities(ctx context.Context, orgID string, refs []inventory.EntityRef) (map[inventory.EntityRef][]inventory.TagIdentifier, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("identifier repo: nil db")
	}

	result := make(map[inventory.EntityRef][]inventory.TagIdentifier, len(refs))
	byKind := make(map[inventory.EntityKind][]int64, 2)
	for _, ref := range refs {
		if _, seen := result[ref]; seen {
			continue
		}
		result[ref] = []inventory.TagIdentifier{}
		byKind[ref.Kind] = append(byKind[ref.Kind], ref.ID)
	}

	for kind, ids := range byKind {
		if err := r.collectByOwnerIDs(ctx, orgID, kind, ids, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *IdentifierRepository) collectByOwnerIDs(ctx context.Context, orgID string, kind inventory.EntityKind, ids []int64, result map[inventory.EntityRef][]inventory.TagIdentifier) error {
	ownerCol, err := ownerColumn(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
SELECT id, org_id, tag_type, tag_value, asset_id, location_id, is_active, created_at
FROM %s
WHERE org_id = $1 AND %s = ANY($2) AND deleted_at IS NULL
ORDER BY id`, r.table, ownerCol)

	rows, err := r.db.QueryContext(ctx, query, orgID, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		identifier, err := scanIdentifier(rows)
		if err != nil {
			return err
		}
		ref, err := identifier.Owner()
		if err != nil {
			return err
		}
		result[ref] = append(result[ref], *identifier)
	}
	return rows.Err()
}

// LookupByValue returns the live identifier with the given type and
// value, or nil when absent.
func (r *IdentifierRepository) LookupByValue(ctx context.Context, orgID string, identifierType inventory.IdentifierType, value string) (*inventory.TagIdentifier, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("identifier repo: nil db")
	}
	if value == "" {
		return nil, errors.New("identifier repo: empty value")
	}

	query := fmt.Sprintf(`
SELECT id, org_id, tag_type, tag_value, asset_id, location_id, is_active, created_at
FROM %s
WHERE org_id = $1 AND tag_type = $2 AND tag_value = $3 AND deleted_at IS NULL
LIMIT 1`, r.table)

	identifier, err := scanIdentifier(r.db.QueryRowContext(ctx, query, orgID, string(identifierType), value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return identifier, nil
}

// RemoveByEntity soft-deletes every live identifier attached to one
// entity and returns the number removed.
func (r *IdentifierRepository) RemoveByEntity(ctx context.Context, orgID string, ref inventory.EntityRef) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("identifier repo: nil db")
	}
	ownerCol, err := ownerColumn(ref.Kind)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
UPDATE %s SET deleted_at = NOW()
WHERE org_id = $1 AND %s = $2 AND deleted_at IS NULL`, r.table, ownerCol)

	result, err := r.db.ExecContext(ctx, query, orgID, ref.ID)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func ownerColumn(kind inventory.EntityKind) (string, error) {
	switch kind {
	case inventory.KindAsset:
		return "asset_id", nil
	case inventory.KindLocation:
		return "location_id", nil
	default:
		return "", inventory.ErrInvalidEntityKind
	}
}

func scanIdentifier(row rowScanner) (*inventory.TagIdentifier, error) {
	var (
		identifier inventory.TagIdentifier
		assetID    sql.NullInt64
		locationID sql.NullInt64
	)
	if err := row.Scan(
		&identifier.ID,
		&identifier.OrgID,
		&identifier.Type,
		&identifier.Value,
		&assetID,
		&locationID,
		&identifier.IsActive,
		&identifier.CreatedAt,
	); err != nil {
		return nil, err
	}
	if assetID.Valid {
		id := assetID.Int64
		identifier.AssetID = &id
	}
	if locationID.Valid {
		id := locationID.Int64
		identifier.LocationID = &id
	}
	identifier.CreatedAt = identifier.CreatedAt.UTC()
	return &identifier, nil
}
