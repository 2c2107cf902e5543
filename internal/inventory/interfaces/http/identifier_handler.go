package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/trakrf/platform/internal/audit"
	"github.com/trakrf/platform/internal/auth"
	"github.com/trakrf/platform/internal/inventory/application"
)

// IdentifierHandler serves identifier removal and tag lookup.
type IdentifierHandler struct {
	service     *application.IdentifierService
	auditLogger audit.Logger
}

// NewIdentifierHandler constructs a handler.
func NewIdentifierHandler(service *application.IdentifierService, auditLogger audit.Logger) (*IdentifierHandler, error) {
	if service == nil {
		return nil, errors.New("identifier handler: nil service")
	}
	return &IdentifierHandler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes identifier requests.
func (h *IdentifierHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !strings.HasPrefix(r.URL.Path, "/api/v1/identifiers/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/identifiers/")

	if rest == "lookup" && r.Method == http.MethodGet {
		h.handleLookup(w, r, orgID)
		return
	}
	if r.Method == http.MethodDelete {
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}
		h.handleRemove(w, r, orgID, id)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *IdentifierHandler) handleRemove(w http.ResponseWriter, r *http.Request, orgID string, id int64) {
	removed, err := h.service.Remove(r.Context(), orgID, id)
	if err != nil {
		respondError(w, err)
		return
	}
	if !removed {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, id, "identifier.remove")
}

func (h *IdentifierHandler) handleLookup(w http.ResponseWriter, r *http.Request, orgID string) {
	tagType := r.URL.Query().Get("type")
	tagValue := r.URL.Query().Get("value")
	view, err := h.service.Lookup(r.Context(), orgID, tagType, tagValue)
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

func (h *IdentifierHandler) logAudit(r *http.Request, id int64, action string) {
	if h.auditLogger == nil {
		return
	}
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		return
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		OrgID:        orgID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "identifier",
		ResourceID:   strconv.FormatInt(id, 10),
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
