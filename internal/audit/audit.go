package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry is one row of the write trail: who did what to which resource.
type Entry struct {
	ID    string
	OrgID string

	// Who: token subject and role at the time of the call.
	Actor string
	Role  string

	// What: dotted action name plus the resource it touched.
	Action       string
	ResourceType string
	ResourceID   string

	// Request context kept for forensics.
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string

	CreatedAt time.Time
}

// Logger is implemented by audit sinks. Handlers hold the interface so
// tests can capture entries without a database.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// withDefaults fills the fields handlers leave blank.
func (e Entry) withDefaults(now time.Time) Entry {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.PayloadDigest == "" {
		e.PayloadDigest = DigestJSON(e.Metadata)
	}
	return e
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON computes the sha256 hex fingerprint of a metadata payload.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
