package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const insertEntry = `
INSERT INTO audit_logs (
	id, org_id, actor, role, action, resource_type, resource_id,
	metadata, payload_digest, ip, user_agent, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

// Repository persists audit entries to Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs an audit repository. A nil db yields a nil
// repository, which callers treat as audit disabled.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Log writes one entry. Missing id, digest, and timestamp are filled
// in here so handlers only set what they know.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	entry = entry.withDefaults(time.Now().UTC())
	_, err := r.db.ExecContext(ctx, insertEntry,
		entry.ID, entry.OrgID, entry.Actor, entry.Role,
		entry.Action, entry.ResourceType, entry.ResourceID,
		entry.Metadata, entry.PayloadDigest, entry.IP,
		entry.UserAgent, entry.CreatedAt)
	return err
}
