package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/trakrf/platform/internal/audit"
	"github.com/trakrf/platform/internal/auth"
	"github.com/trakrf/platform/internal/inventory/application"
	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

// EntityHandler serves the register endpoints for one entity kind. Two
// instances cover /api/v1/assets and /api/v1/locations.
type EntityHandler struct {
	kind        inventory.EntityKind
	basePath    string
	creation    *application.CreationService
	views       *application.ViewAssembler
	entities    *application.EntityService
	identifiers *application.IdentifierService
	auditLogger audit.Logger
}

// NewEntityHandler constructs a handler for one kind.
func NewEntityHandler(
	kind inventory.EntityKind,
	creation *application.CreationService,
	views *application.ViewAssembler,
	entities *application.EntityService,
	identifiers *application.IdentifierService,
	auditLogger audit.Logger,
) (*EntityHandler, error) {
	if _, ok := inventory.NormalizeEntityKind(string(kind)); !ok {
		return nil, inventory.ErrInvalidEntityKind
	}
	if creation == nil {
		return nil, errors.New("entity handler: nil creation service")
	}
	if views == nil {
		return nil, errors.New("entity handler: nil view assembler")
	}
	if entities == nil {
		return nil, errors.New("entity handler: nil entity service")
	}
	if identifiers == nil {
		return nil, errors.New("entity handler: nil identifier service")
	}
	return &EntityHandler{
		kind:        kind,
		basePath:    "/api/v1/" + string(kind) + "s",
		creation:    creation,
		views:       views,
		entities:    entities,
		identifiers: identifiers,
		auditLogger: auditLogger,
	}, nil
}

// BasePath returns the handler's mount point.
func (h *EntityHandler) BasePath() string {
	return h.basePath
}

// ServeHTTP routes register requests for the handler's kind.
func (h *EntityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if r.URL.Path == h.basePath || r.URL.Path == h.basePath+"/" {
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r, orgID)
		case http.MethodPost:
			h.handleCreate(w, r, orgID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if !strings.HasPrefix(r.URL.Path, h.basePath+"/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, h.basePath+"/"), "/")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGet(w, r, orgID, id)
	case len(parts) == 1 && r.Method == http.MethodPut:
		h.handleUpdate(w, r, orgID, id)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleDelete(w, r, orgID, id)
	case len(parts) == 2 && parts[1] == "identifiers" && r.Method == http.MethodPost:
		h.handleAttach(w, r, orgID, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *EntityHandler) handleCreate(w http.ResponseWriter, r *http.Request, orgID string) {
	var req application.CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	view, err := h.creation.Create(r.Context(), orgID, h.kind, req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toViewResponse(*view))
	h.logAudit(r, view.ID, string(h.kind)+".create", map[string]any{
		"customer_identifier": view.CustomerIdentifier,
		"identifiers":         len(view.Identifiers),
	})
}

func (h *EntityHandler) handleList(w http.ResponseWriter, r *http.Request, orgID string) {
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)
	views, total, err := h.views.ListViews(r.Context(), orgID, h.kind, limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	items := make([]entityViewResponse, 0, len(views))
	for _, view := range views {
		items = append(items, toViewResponse(view))
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Total: total})
}

func (h *EntityHandler) handleGet(w http.ResponseWriter, r *http.Request, orgID string, id int64) {
	view, err := h.views.GetView(r.Context(), orgID, h.kind, id)
	if err != nil {
		respondError(w, err)
		return
	}
	if view == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toViewResponse(*view))
}

func (h *EntityHandler) handleUpdate(w http.ResponseWriter, r *http.Request, orgID string, id int64) {
	var req application.UpdateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	view, err := h.entities.Update(r.Context(), orgID, h.kind, id, req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewResponse(*view))
	h.logAudit(r, id, string(h.kind)+".update", map[string]any{"name": view.Name})
}

func (h *EntityHandler) handleDelete(w http.ResponseWriter, r *http.Request, orgID string, id int64) {
	deleted, err := h.entities.Delete(r.Context(), orgID, h.kind, id)
	if err != nil {
		respondError(w, err)
		return
	}
	if !deleted {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, id, string(h.kind)+".delete", nil)
}

func (h *EntityHandler) handleAttach(w http.ResponseWriter, r *http.Request, orgID string, id int64) {
	var req application.IdentifierInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	tag, err := h.identifiers.Attach(r.Context(), orgID, inventory.EntityRef{Kind: h.kind, ID: id}, req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIdentifierResponse(*tag))
	h.logAudit(r, id, "identifier.add", map[string]any{"type": req.Type, "value": req.Value})
}

func (h *EntityHandler) logAudit(r *http.Request, entityID int64, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		OrgID:        orgID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: string(h.kind),
		ResourceID:   strconv.FormatInt(entityID, 10),
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
