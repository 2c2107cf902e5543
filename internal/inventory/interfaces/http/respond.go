package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

type identifierResponse struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Value     string    `json:"value"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type entityViewResponse struct {
	ID                 int64                `json:"id"`
	Kind               string               `json:"kind"`
	CustomerIdentifier string               `json:"customer_identifier"`
	Name               string               `json:"name"`
	Type               string               `json:"type,omitempty"`
	Description        string               `json:"description,omitempty"`
	CurrentLocationID  *int64               `json:"current_location_id,omitempty"`
	ParentID           *int64               `json:"parent_id,omitempty"`
	ValidFrom          *time.Time           `json:"valid_from,omitempty"`
	ValidTo            *time.Time           `json:"valid_to,omitempty"`
	IsActive           bool                 `json:"is_active"`
	Metadata           map[string]any       `json:"metadata,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
	Identifiers        []identifierResponse `json:"identifiers"`
}

type listResponse struct {
	Items []entityViewResponse `json:"items"`
	Total int                  `json:"total"`
}

func toIdentifierResponse(tag inventory.TagIdentifier) identifierResponse {
	return identifierResponse{
		ID:        tag.ID,
		Type:      string(tag.Type),
		Value:     tag.Value,
		IsActive:  tag.IsActive,
		CreatedAt: tag.CreatedAt,
	}
}

// toViewResponse flattens a view for the wire. Identifiers marshals as
// an array even when empty, never null.
func toViewResponse(view inventory.EntityView) entityViewResponse {
	identifiers := make([]identifierResponse, 0, len(view.Identifiers))
	for _, tag := range view.Identifiers {
		identifiers = append(identifiers, toIdentifierResponse(tag))
	}
	return entityViewResponse{
		ID:                 view.ID,
		Kind:               string(view.Kind),
		CustomerIdentifier: view.CustomerIdentifier,
		Name:               view.Name,
		Type:               view.Type,
		Description:        view.Description,
		CurrentLocationID:  view.CurrentLocationID,
		ParentID:           view.ParentID,
		ValidFrom:          view.ValidFrom,
		ValidTo:            view.ValidTo,
		IsActive:           view.IsActive,
		Metadata:           view.Metadata,
		CreatedAt:          view.CreatedAt,
		UpdatedAt:          view.UpdatedAt,
		Identifiers:        identifiers,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError maps domain errors onto HTTP status codes. Unknown
// errors stay opaque.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inventory.ErrDuplicateIdentifier),
		errors.Is(err, inventory.ErrDuplicateCustomerID):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, inventory.ErrInvalidIdentifierType),
		errors.Is(err, inventory.ErrInvalidEntityKind),
		errors.Is(err, inventory.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, inventory.ErrEntityNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseIntQuery(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
