package inventory

import (
	"errors"
	"strings"
	"time"
)

// IdentifierType is the physical tag technology carried by an identifier.
type IdentifierType string

const (
	IdentifierRFID    IdentifierType = "rfid"
	IdentifierBLE     IdentifierType = "ble"
	IdentifierBarcode IdentifierType = "barcode"
	IdentifierQR      IdentifierType = "qr"
	IdentifierNFC     IdentifierType = "nfc"
)

// NormalizeIdentifierType validates and normalizes a type string.
func NormalizeIdentifierType(value string) (IdentifierType, bool) {
	switch IdentifierType(strings.ToLower(strings.TrimSpace(value))) {
	case IdentifierRFID:
		return IdentifierRFID, true
	case IdentifierBLE:
		return IdentifierBLE, true
	case IdentifierBarcode:
		return IdentifierBarcode, true
	case IdentifierQR:
		return IdentifierQR, true
	case IdentifierNFC:
		return IdentifierNFC, true
	default:
		return "", false
	}
}

// TagIdentifier binds one physical tag payload to exactly one entity.
// Exactly one of AssetID / LocationID is set; (OrgID, Type, Value) is
// unique among live identifiers.
type TagIdentifier struct {
	ID         int64
	OrgID      string
	Type       IdentifierType
	Value      string
	AssetID    *int64
	LocationID *int64
	IsActive   bool
	CreatedAt  time.Time
	DeletedAt  *time.Time
}

// Owner returns the reference of the owning entity.
func (t TagIdentifier) Owner() (EntityRef, error) {
	switch {
	case t.AssetID != nil && t.LocationID == nil:
		return EntityRef{Kind: KindAsset, ID: *t.AssetID}, nil
	case t.LocationID != nil && t.AssetID == nil:
		return EntityRef{Kind: KindLocation, ID: *t.LocationID}, nil
	default:
		return EntityRef{}, errors.New("identifier: owner is not exactly one entity")
	}
}

// SetOwner points the identifier at the given entity.
func (t *TagIdentifier) SetOwner(ref EntityRef) error {
	switch ref.Kind {
	case KindAsset:
		id := ref.ID
		t.AssetID = &id
		t.LocationID = nil
	case KindLocation:
		id := ref.ID
		t.LocationID = &id
		t.AssetID = nil
	default:
		return ErrInvalidEntityKind
	}
	return nil
}

// Validate checks identifier invariants.
func (t TagIdentifier) Validate() error {
	if t.OrgID == "" {
		return errors.New("identifier: empty org id")
	}
	if _, ok := NormalizeIdentifierType(string(t.Type)); !ok {
		return ErrInvalidIdentifierType
	}
	if t.Value == "" {
		return errors.New("identifier: empty value")
	}
	if _, err := t.Owner(); err != nil {
		return err
	}
	return nil
}

// Clone returns a deep copy of the identifier.
func (t *TagIdentifier) Clone() *TagIdentifier {
	if t == nil {
		return nil
	}
	out := *t
	out.AssetID = cloneInt64(t.AssetID)
	out.LocationID = cloneInt64(t.LocationID)
	out.DeletedAt = cloneTime(t.DeletedAt)
	return &out
}
