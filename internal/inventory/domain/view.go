package inventory

// EntityView joins an entity with its live identifiers for read paths.
// Identifiers is never nil; an entity without tags carries an empty slice.
type EntityView struct {
	Entity
	Identifiers []TagIdentifier
}

// NewEntityView builds a view, normalizing a nil identifier slice.
func NewEntityView(entity Entity, identifiers []TagIdentifier) EntityView {
	if identifiers == nil {
		identifiers = []TagIdentifier{}
	}
	return EntityView{Entity: entity, Identifiers: identifiers}
}
