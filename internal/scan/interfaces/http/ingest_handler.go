package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/trakrf/platform/internal/audit"
	inventory "github.com/trakrf/platform/internal/inventory/domain"
	"github.com/trakrf/platform/internal/scan/application"
)

// IngestHandler accepts reader scan events. The route sits behind the
// HMAC ingest middleware, not the JWT middleware; the event body names
// its org.
type IngestHandler struct {
	service     *application.Service
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewIngestHandler constructs a handler.
func NewIngestHandler(service *application.Service, auditLogger audit.Logger, logger *log.Logger) (*IngestHandler, error) {
	if service == nil {
		return nil, errors.New("scan ingest: nil service")
	}
	return &IngestHandler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

type scanRequest struct {
	OrgID      string `json:"org_id"`
	Type       string `json:"type"`
	Value      string `json:"value"`
	Location   string `json:"location"`
	ReaderID   string `json:"reader_id"`
	ObservedAt int64  `json:"observed_at"`
}

type scanResponse struct {
	Matched  bool   `json:"matched"`
	Kind     string `json:"kind,omitempty"`
	EntityID int64  `json:"entity_id,omitempty"`
	Moved    bool   `json:"moved"`
	From     *int64 `json:"from_location_id,omitempty"`
	To       *int64 `json:"to_location_id,omitempty"`
}

// ServeHTTP ingests one scan event.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	event, err := req.toEvent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.HandleScan(r.Context(), event)
	if err != nil {
		if errors.Is(err, inventory.ErrInvalidIdentifierType) {
			http.Error(w, "unknown identifier type", http.StatusBadRequest)
			return
		}
		h.logf("event=scan_ingest_failed org_id=%s error=%v", event.OrgID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !result.Matched {
		http.Error(w, "unknown tag", http.StatusNotFound)
		return
	}

	resp := scanResponse{
		Matched:  true,
		Kind:     string(result.Kind),
		EntityID: result.EntityID,
		Moved:    result.Moved,
		From:     result.From,
		To:       result.To,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)

	if result.Moved {
		h.logAudit(r, event, result)
	}
}

func (r scanRequest) toEvent() (application.Event, error) {
	if r.OrgID == "" {
		return application.Event{}, errors.New("org_id required")
	}
	if r.Type == "" || r.Value == "" {
		return application.Event{}, errors.New("type and value required")
	}
	event := application.Event{
		OrgID:    r.OrgID,
		Type:     r.Type,
		Value:    r.Value,
		Location: r.Location,
		ReaderID: r.ReaderID,
	}
	if r.ObservedAt > 0 {
		event.ObservedAt = parseTimestamp(r.ObservedAt)
	}
	return event, nil
}

// parseTimestamp accepts epoch milliseconds or seconds.
func parseTimestamp(value int64) time.Time {
	if value > 1_000_000_000_000 {
		return time.UnixMilli(value).UTC()
	}
	return time.Unix(value, 0).UTC()
}

func (h *IngestHandler) logAudit(r *http.Request, event application.Event, result *application.Result) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"tag_type": event.Type,
		"reader":   event.ReaderID,
		"from":     result.From,
		"to":       result.To,
	})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		OrgID:        event.OrgID,
		Actor:        "reader:" + event.ReaderID,
		Role:         "ingest",
		Action:       "asset.move",
		ResourceType: "asset",
		ResourceID:   strconv.FormatInt(result.EntityID, 10),
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func (h *IngestHandler) logf(format string, args ...any) {
	if h.logger == nil {
		return
	}
	h.logger.Printf(format, args...)
}
