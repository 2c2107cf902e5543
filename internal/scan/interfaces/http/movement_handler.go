package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/trakrf/platform/internal/auth"
	"github.com/trakrf/platform/internal/scan/application"
	scan "github.com/trakrf/platform/internal/scan/domain"
)

// MovementHandler serves GET /api/v1/assets/{id}/movements. It shares
// the asset prefix with the register handler; the wiring layer routes
// paths ending in /movements here.
type MovementHandler struct {
	service *application.Service
}

// NewMovementHandler constructs a handler.
func NewMovementHandler(service *application.Service) (*MovementHandler, error) {
	if service == nil {
		return nil, errors.New("movement handler: nil service")
	}
	return &MovementHandler{service: service}, nil
}

type movementResponse struct {
	ID         int64     `json:"id"`
	AssetID    int64     `json:"asset_id"`
	From       *int64    `json:"from_location_id,omitempty"`
	To         *int64    `json:"to_location_id,omitempty"`
	TagType    string    `json:"tag_type,omitempty"`
	TagValue   string    `json:"tag_value,omitempty"`
	ReaderID   string    `json:"reader_id,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

type movementListResponse struct {
	Items []movementResponse `json:"items"`
}

// ServeHTTP lists recent movements for one asset.
func (h *MovementHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/assets/"), "/")
	if len(parts) != 2 || parts[1] != "movements" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	assetID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || assetID <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	movements, err := h.service.History(r.Context(), orgID, assetID, limit)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	items := make([]movementResponse, 0, len(movements))
	for _, movement := range movements {
		items = append(items, toMovementResponse(movement))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(movementListResponse{Items: items})
}

func toMovementResponse(movement scan.Movement) movementResponse {
	return movementResponse{
		ID:         movement.ID,
		AssetID:    movement.AssetID,
		From:       movement.FromLocationID,
		To:         movement.ToLocationID,
		TagType:    movement.TagType,
		TagValue:   movement.TagValue,
		ReaderID:   movement.ReaderID,
		ObservedAt: movement.ObservedAt,
	}
}
