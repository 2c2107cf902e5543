package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// repositories run unchanged inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Store exposes inventory repositories over one connection pool and runs
// multi-step writes inside a single transaction.
type Store struct {
	db *sql.DB
}

// NewStore constructs a store.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("inventory store: nil db")
	}
	return &Store{db: db}, nil
}

// Entities returns an entity repository bound to the pool.
func (s *Store) Entities() *EntityRepository {
	return NewEntityRepository(s.db)
}

// Identifiers returns an identifier repository bound to the pool.
func (s *Store) Identifiers() *IdentifierRepository {
	return NewIdentifierRepository(s.db)
}

// WithinTx runs fn against transaction-bound repositories. Any error from
// fn rolls back everything fn wrote.
func (s *Store) WithinTx(ctx context.Context, fn func(entities inventory.EntityRepository, identifiers inventory.IdentifierRepository) error) error {
	if s == nil || s.db == nil {
		return errors.New("inventory store: nil db")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(NewEntityRepository(tx), NewIdentifierRepository(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Constraint names from the inventory schema. The database is the
// authority on uniqueness; a violation on one of these surfaces as a
// domain error instead of a raw SQL error.
const (
	constraintIdentifierValueLive    = "tag_identifiers_org_type_value_live"
	constraintAssetCustomerIDLive    = "assets_org_customer_identifier_live"
	constraintLocationCustomerIDLive = "locations_org_customer_identifier_live"
)

const uniqueViolationCode = "23505"

func mapConstraintError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintIdentifierValueLive:
		return inventory.ErrDuplicateIdentifier
	case constraintAssetCustomerIDLive, constraintLocationCustomerIDLive:
		return inventory.ErrDuplicateCustomerID
	default:
		return err
	}
}
