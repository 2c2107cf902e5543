package inventory

import "errors"

var (
	// ErrDuplicateIdentifier indicates the (org, type, value) triple is
	// already bound to a live identifier.
	ErrDuplicateIdentifier = errors.New("inventory: duplicate identifier value")
	// ErrInvalidIdentifierType indicates a type outside the allowed set.
	ErrInvalidIdentifierType = errors.New("inventory: invalid identifier type")
	// ErrEntityNotFound indicates the entity id does not resolve to a live row.
	ErrEntityNotFound = errors.New("inventory: entity not found")
	// ErrDuplicateCustomerID indicates the customer identifier is already
	// used by a live entity of the same kind in the org.
	ErrDuplicateCustomerID = errors.New("inventory: duplicate customer identifier")
	// ErrInvalidEntityKind indicates a kind outside {asset, location}.
	ErrInvalidEntityKind = errors.New("inventory: invalid entity kind")
	// ErrValidation flags malformed caller input.
	ErrValidation = errors.New("inventory: validation failed")
)
