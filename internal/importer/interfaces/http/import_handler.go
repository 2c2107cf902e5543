package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/trakrf/platform/internal/audit"
	"github.com/trakrf/platform/internal/auth"
	"github.com/trakrf/platform/internal/importer/application"
	importer "github.com/trakrf/platform/internal/importer/domain"
	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

const basePath = "/api/v1/imports"

// multipart framing adds overhead on top of the file itself.
const multipartOverhead = 1 << 20

// ImportHandler serves bulk upload submission and status endpoints.
type ImportHandler struct {
	service     *application.Service
	auditLogger audit.Logger
}

// NewImportHandler constructs a handler.
func NewImportHandler(service *application.Service, auditLogger audit.Logger) (*ImportHandler, error) {
	if service == nil {
		return nil, errors.New("import handler: nil service")
	}
	return &ImportHandler{service: service, auditLogger: auditLogger}, nil
}

// BasePath returns the handler's mount point.
func (h *ImportHandler) BasePath() string {
	return basePath
}

// ServeHTTP routes import requests.
func (h *ImportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if r.URL.Path == basePath || r.URL.Path == basePath+"/" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSubmit(w, r, orgID)
		return
	}

	if !strings.HasPrefix(r.URL.Path, basePath+"/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, basePath+"/")
	if jobID == "" || strings.Contains(jobID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.handleStatus(w, r, orgID, jobID)
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (h *ImportHandler) handleSubmit(w http.ResponseWriter, r *http.Request, orgID string) {
	maxBytes := h.service.MaxUploadBytes() + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	kind := r.FormValue("kind")
	if kind == "" {
		kind = r.URL.Query().Get("kind")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file part required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	job, err := h.service.Submit(r.Context(), orgID, inventory.EntityKind(kind), header.Filename, file)
	if err != nil {
		respondSubmitError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{JobID: job.ID, Status: string(job.Status)})
	h.logAudit(r, job.ID, "import.submit", map[string]any{
		"kind":     string(job.Kind),
		"filename": job.Filename,
		"bytes":    len(job.Payload),
	})
}

type jobResponse struct {
	ID            string              `json:"id"`
	Kind          string              `json:"kind"`
	Status        string              `json:"status"`
	Filename      string              `json:"filename,omitempty"`
	TotalRows     int                 `json:"total_rows"`
	ProcessedRows int                 `json:"processed_rows"`
	FailedRows    int                 `json:"failed_rows"`
	TagsCreated   int                 `json:"tags_created"`
	Errors        []importer.RowError `json:"errors"`
	CreatedAt     time.Time           `json:"created_at"`
	StartedAt     *time.Time          `json:"started_at,omitempty"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
}

func (h *ImportHandler) handleStatus(w http.ResponseWriter, r *http.Request, orgID, jobID string) {
	job, err := h.service.GetStatus(r.Context(), orgID, jobID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	rowErrors := job.Errors
	if rowErrors == nil {
		rowErrors = []importer.RowError{}
	}
	writeJSON(w, http.StatusOK, jobResponse{
		ID:            job.ID,
		Kind:          string(job.Kind),
		Status:        string(job.Status),
		Filename:      job.Filename,
		TotalRows:     job.TotalRows,
		ProcessedRows: job.ProcessedRows,
		FailedRows:    job.FailedRows,
		TagsCreated:   job.TagsCreated,
		Errors:        rowErrors,
		CreatedAt:     job.CreatedAt,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
	})
}

func respondSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, importer.ErrUploadTooLarge):
		http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, importer.ErrMalformedUpload):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, inventory.ErrInvalidEntityKind):
		http.Error(w, "kind must be asset or location", http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *ImportHandler) logAudit(r *http.Request, jobID, action string, meta map[string]any) {
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
		ResourceType: "import_job",
		ResourceID:   jobID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
