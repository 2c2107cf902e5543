package apihttp

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/trakrf/platform/internal/auth"
	inventory "github.com/trakrf/platform/internal/inventory/domain"
	"github.com/trakrf/platform/internal/observability/metrics"
)

const timeLayout = time.RFC3339

// registerRow is one line of the entity register: an asset or location
// joined with its live identifiers and its resolved location reference
// (current location for assets, parent for locations).
type registerRow struct {
	Kind               string
	ID                 int64
	CustomerIdentifier string
	Name               string
	Type               string
	Description        string
	LocationRef        string
	ValidFrom          *time.Time
	ValidTo            *time.Time
	IsActive           bool
	Identifiers        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

var registerHeader = []string{
	"kind",
	"id",
	"customer_identifier",
	"name",
	"type",
	"description",
	"location_ref",
	"valid_from",
	"valid_to",
	"is_active",
	"identifiers",
	"created_at",
	"updated_at",
}

func registerRecord(row registerRow) []string {
	return []string{
		row.Kind,
		strconv.FormatInt(row.ID, 10),
		row.CustomerIdentifier,
		row.Name,
		row.Type,
		row.Description,
		row.LocationRef,
		formatTimePtr(row.ValidFrom),
		formatTimePtr(row.ValidTo),
		strconv.FormatBool(row.IsActive),
		row.Identifiers,
		formatTime(row.CreatedAt),
		formatTime(row.UpdatedAt),
	}
}

// ExportEntitiesCSVHandler serves register CSV exports.
type ExportEntitiesCSVHandler struct {
	db *sql.DB
}

// NewExportEntitiesCSVHandler constructs a ExportEntitiesCSVHandler.
func NewExportEntitiesCSVHandler(db *sql.DB) *ExportEntitiesCSVHandler {
	return &ExportEntitiesCSVHandler{db: db}
}

// ServeHTTP handles GET /api/v1/exports/entities.csv.
func (h *ExportEntitiesCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	_, rows, ok := loadRegister(w, r, h.db)
	if !ok {
		metrics.ObserveRegisterExport("csv", metrics.ResultError, time.Since(start))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer := csv.NewWriter(w)
	_ = writer.Write(registerHeader)
	for _, row := range rows {
		_ = writer.Write(registerRecord(row))
	}
	writer.Flush()
	metrics.ObserveRegisterExport("csv", metrics.ResultSuccess, time.Since(start))
}

// ExportEntitiesXLSXHandler serves register workbook exports.
type ExportEntitiesXLSXHandler struct {
	db *sql.DB
}

// NewExportEntitiesXLSXHandler constructs a ExportEntitiesXLSXHandler.
func NewExportEntitiesXLSXHandler(db *sql.DB) *ExportEntitiesXLSXHandler {
	return &ExportEntitiesXLSXHandler{db: db}
}

// ServeHTTP handles GET /api/v1/exports/entities.xlsx.
func (h *ExportEntitiesXLSXHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	_, rows, ok := loadRegister(w, r, h.db)
	if !ok {
		metrics.ObserveRegisterExport("xlsx", metrics.ResultError, time.Since(start))
		return
	}

	data, err := BuildRegisterXLSX(rows)
	if err != nil {
		http.Error(w, "render workbook error", http.StatusInternalServerError)
		metrics.ObserveRegisterExport("xlsx", metrics.ResultError, time.Since(start))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	_, _ = w.Write(data)
	metrics.ObserveRegisterExport("xlsx", metrics.ResultSuccess, time.Since(start))
}

// ExportEntitiesPDFHandler serves register PDF exports.
type ExportEntitiesPDFHandler struct {
	db *sql.DB
}

// NewExportEntitiesPDFHandler constructs a ExportEntitiesPDFHandler.
func NewExportEntitiesPDFHandler(db *sql.DB) *ExportEntitiesPDFHandler {
	return &ExportEntitiesPDFHandler{db: db}
}

// ServeHTTP handles GET /api/v1/exports/entities.pdf.
func (h *ExportEntitiesPDFHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	orgID, rows, ok := loadRegister(w, r, h.db)
	if !ok {
		metrics.ObserveRegisterExport("pdf", metrics.ResultError, time.Since(start))
		return
	}

	data, err := BuildRegisterPDF(orgID, rows)
	if err != nil {
		http.Error(w, "render pdf error", http.StatusInternalServerError)
		metrics.ObserveRegisterExport("pdf", metrics.ResultError, time.Since(start))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	_, _ = w.Write(data)
	metrics.ObserveRegisterExport("pdf", metrics.ResultSuccess, time.Since(start))
}

// loadRegister validates the request and loads the register rows for
// the requested kinds. On failure it writes the error response and
// returns ok=false.
func loadRegister(w http.ResponseWriter, r *http.Request, db *sql.DB) (string, []registerRow, bool) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return "", nil, false
	}
	if db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return "", nil, false
	}
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", nil, false
	}

	kinds, err := resolveKinds(r.URL.Query().Get("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", nil, false
	}

	var result []registerRow
	for _, kind := range kinds {
		rows, err := queryRegister(r.Context(), db, orgID, kind)
		if err != nil {
			http.Error(w, "query register error", http.StatusInternalServerError)
			return "", nil, false
		}
		result = append(result, rows...)
	}
	return orgID, result, true
}

func resolveKinds(raw string) ([]inventory.EntityKind, error) {
	if raw == "" {
		return []inventory.EntityKind{inventory.KindAsset, inventory.KindLocation}, nil
	}
	kind, ok := inventory.NormalizeEntityKind(raw)
	if !ok {
		return nil, errors.New("kind must be asset or location")
	}
	return []inventory.EntityKind{kind}, nil
}

func queryRegister(ctx context.Context, db *sql.DB, orgID string, kind inventory.EntityKind) ([]registerRow, error) {
	table := "assets"
	typeColumn := "asset_type"
	ownerColumn := "asset_id"
	refJoin := "LEFT JOIN locations ref ON ref.id = e.current_location_id AND ref.deleted_at IS NULL"
	if kind == inventory.KindLocation {
		table = "locations"
		typeColumn = "location_type"
		ownerColumn = "location_id"
		refJoin = "LEFT JOIN locations ref ON ref.id = e.parent_id AND ref.deleted_at IS NULL"
	}

	query := fmt.Sprintf(`
SELECT
	e.id,
	e.customer_identifier,
	e.name,
	e.%s,
	e.description,
	ref.customer_identifier,
	e.valid_from,
	e.valid_to,
	e.is_active,
	COALESCE(tags.identifiers, ''),
	e.created_at,
	e.updated_at
FROM %s e
%s
LEFT JOIN (
	SELECT %s AS owner_id, string_agg(tag_type || ':' || tag_value, ';' ORDER BY id) AS identifiers
	FROM tag_identifiers
	WHERE org_id = $1
		AND deleted_at IS NULL
		AND %s IS NOT NULL
	GROUP BY %s
) tags ON tags.owner_id = e.id
WHERE e.org_id = $1
	AND e.deleted_at IS NULL
ORDER BY e.customer_identifier ASC`, typeColumn, table, refJoin, ownerColumn, ownerColumn, ownerColumn)

	rows, err := db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []registerRow
	for rows.Next() {
		row := registerRow{Kind: string(kind)}
		var ref sql.NullString
		var validFrom, validTo sql.NullTime
		if err := rows.Scan(
			&row.ID,
			&row.CustomerIdentifier,
			&row.Name,
			&row.Type,
			&row.Description,
			&ref,
			&validFrom,
			&validTo,
			&row.IsActive,
			&row.Identifiers,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if ref.Valid {
			row.LocationRef = ref.String
		}
		if validFrom.Valid {
			t := validFrom.Time.UTC()
			row.ValidFrom = &t
		}
		if validTo.Valid {
			t := validTo.Time.UTC()
			row.ValidTo = &t
		}
		row.CreatedAt = row.CreatedAt.UTC()
		row.UpdatedAt = row.UpdatedAt.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SummaryHandler serves org-wide register counts.
type SummaryHandler struct {
	db *sql.DB
}

// NewSummaryHandler constructs a SummaryHandler.
func NewSummaryHandler(db *sql.DB) *SummaryHandler {
	return &SummaryHandler{db: db}
}

type kindSummary struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

type identifierSummary struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"by_type"`
}

type summaryResponse struct {
	Assets      kindSummary       `json:"assets"`
	Locations   kindSummary       `json:"locations"`
	Identifiers identifierSummary `json:"identifiers"`
	ImportJobs  map[string]int    `json:"import_jobs"`
}

// ServeHTTP handles GET /api/v1/summary.
func (h *SummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	summary, err := querySummary(r.Context(), h.db, orgID)
	if err != nil {
		http.Error(w, "query summary error", http.StatusInternalServerError)
		metrics.ObserveViewRequest("summary", metrics.ResultError, time.Since(start))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summary)
	metrics.ObserveViewRequest("summary", metrics.ResultSuccess, time.Since(start))
}

func querySummary(ctx context.Context, db *sql.DB, orgID string) (*summaryResponse, error) {
	summary := &summaryResponse{
		Identifiers: identifierSummary{ByType: map[string]int{}},
		ImportJobs:  map[string]int{},
	}

	var err error
	summary.Assets, err = queryKindSummary(ctx, db, "assets", orgID)
	if err != nil {
		return nil, err
	}
	summary.Locations, err = queryKindSummary(ctx, db, "locations", orgID)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
SELECT tag_type, COUNT(*)
FROM tag_identifiers
WHERE org_id = $1
	AND deleted_at IS NULL
GROUP BY tag_type
ORDER BY tag_type ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var tagType string
		var count int
		if err := rows.Scan(&tagType, &count); err != nil {
			return nil, err
		}
		summary.Identifiers.ByType[tagType] = count
		summary.Identifiers.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	jobRows, err := db.QueryContext(ctx, `
SELECT status, COUNT(*)
FROM import_jobs
WHERE org_id = $1
GROUP BY status`, orgID)
	if err != nil {
		return nil, err
	}
	defer jobRows.Close()
	for jobRows.Next() {
		var status string
		var count int
		if err := jobRows.Scan(&status, &count); err != nil {
			return nil, err
		}
		summary.ImportJobs[status] = count
	}
	if err := jobRows.Err(); err != nil {
		return nil, err
	}
	return summary, nil
}

func queryKindSummary(ctx context.Context, db *sql.DB, table, orgID string) (kindSummary, error) {
	query := fmt.Sprintf(`
SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active)
FROM %s
WHERE org_id = $1
	AND deleted_at IS NULL`, table)

	var summary kindSummary
	err := db.QueryRowContext(ctx, query, orgID).Scan(&summary.Total, &summary.Active)
	if err != nil {
		return kindSummary{}, err
	}
	return summary, nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}

func formatTimePtr(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatTime(*value)
}
