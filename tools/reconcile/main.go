package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const timeLayout = time.RFC3339

// reconcile sweeps the register tables for rows that violate the
// invariants the constraints are supposed to hold: identifiers whose
// owner is gone, duplicate live values, assets parked at deleted
// locations, and import jobs stuck in processing.

type config struct {
	dbURL      string
	orgID      string
	outDir     string
	stuckAfter time.Duration
	strict     bool
}

type orphanIdentifier struct {
	ID         int64
	OrgID      string
	TagType    string
	TagValue   string
	AssetID    *int64
	LocationID *int64
	CreatedAt  time.Time
}

type duplicateIdentifier struct {
	OrgID    string
	TagType  string
	TagValue string
	Count    int
}

type danglingReference struct {
	Kind               string
	ID                 int64
	OrgID              string
	CustomerIdentifier string
	ReferenceID        int64
}

type stuckJob struct {
	ID        string
	OrgID     string
	Status    string
	StartedAt *time.Time
	UpdatedAt time.Time
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	ctx := context.Background()

	orphans, err := loadOrphanIdentifiers(ctx, db, cfg.orgID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load orphan identifiers:", err)
		os.Exit(2)
	}
	duplicates, err := loadDuplicateIdentifiers(ctx, db, cfg.orgID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load duplicate identifiers:", err)
		os.Exit(2)
	}
	dangling, err := loadDanglingReferences(ctx, db, cfg.orgID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load dangling references:", err)
		os.Exit(2)
	}
	stuck, err := loadStuckJobs(ctx, db, cfg.orgID, cfg.stuckAfter)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load stuck jobs:", err)
		os.Exit(2)
	}

	if err := writeOrphanIdentifiers(cfg.outDir, orphans); err != nil {
		fmt.Fprintln(os.Stderr, "write orphan identifiers:", err)
		os.Exit(2)
	}
	if err := writeDuplicateIdentifiers(cfg.outDir, duplicates); err != nil {
		fmt.Fprintln(os.Stderr, "write duplicate identifiers:", err)
		os.Exit(2)
	}
	if err := writeDanglingReferences(cfg.outDir, dangling); err != nil {
		fmt.Fprintln(os.Stderr, "write dangling references:", err)
		os.Exit(2)
	}
	if err := writeStuckJobs(cfg.outDir, stuck); err != nil {
		fmt.Fprintln(os.Stderr, "write stuck jobs:", err)
		os.Exit(2)
	}

	total := len(orphans) + len(duplicates) + len(dangling) + len(stuck)
	fmt.Printf("Reconciliation outputs written to %s\n", cfg.outDir)
	fmt.Printf("orphan_identifiers=%d duplicate_identifiers=%d dangling_references=%d stuck_jobs=%d\n",
		len(orphans), len(duplicates), len(dangling), len(stuck))
	if cfg.strict && total > 0 {
		os.Exit(1)
	}
}

func parseFlags() (config, error) {
	var cfg config
	var stuckAfter string
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.orgID, "org", getenvDefault("ORG_ID", ""), "org id filter (optional, all orgs when empty)")
	flag.StringVar(&cfg.outDir, "out", "./out", "output directory")
	flag.StringVar(&stuckAfter, "stuck-after", "30m", "age after which a processing job counts as stuck")
	flag.BoolVar(&cfg.strict, "strict", false, "exit non-zero when findings exist")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, errors.New("missing --db or DATABASE_URL/PG_DSN")
	}
	parsed, err := time.ParseDuration(stuckAfter)
	if err != nil {
		return cfg, errors.New("stuck-after must be a duration like 30m")
	}
	cfg.stuckAfter = parsed
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

// loadOrphanIdentifiers finds live identifiers whose owning entity row
// is soft-deleted or missing.
func loadOrphanIdentifiers(ctx context.Context, db *sql.DB, orgID string) ([]orphanIdentifier, error) {
	query := `
SELECT
	t.id,
	t.org_id,
	t.tag_type,
	t.tag_value,
	t.asset_id,
	t.location_id,
	t.created_at
FROM tag_identifiers t
LEFT JOIN assets a ON a.id = t.asset_id AND a.deleted_at IS NULL
LEFT JOIN locations l ON l.id = t.location_id AND l.deleted_at IS NULL
WHERE t.deleted_at IS NULL
	AND ($1 = '' OR t.org_id = $1)
	AND ((t.asset_id IS NOT NULL AND a.id IS NULL)
		OR (t.location_id IS NOT NULL AND l.id IS NULL))
ORDER BY t.org_id ASC, t.id ASC`

	rows, err := db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []orphanIdentifier
	for rows.Next() {
		var row orphanIdentifier
		var assetID, locationID sql.NullInt64
		if err := rows.Scan(&row.ID, &row.OrgID, &row.TagType, &row.TagValue, &assetID, &locationID, &row.CreatedAt); err != nil {
			return nil, err
		}
		if assetID.Valid {
			row.AssetID = &assetID.Int64
		}
		if locationID.Valid {
			row.LocationID = &locationID.Int64
		}
		row.CreatedAt = row.CreatedAt.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// loadDuplicateIdentifiers reports (org, type, value) triples with more
// than one live row. The partial unique index should make this empty.
func loadDuplicateIdentifiers(ctx context.Context, db *sql.DB, orgID string) ([]duplicateIdentifier, error) {
	query := `
SELECT org_id, tag_type, tag_value, COUNT(*)
FROM tag_identifiers
WHERE deleted_at IS NULL
	AND ($1 = '' OR org_id = $1)
GROUP BY org_id, tag_type, tag_value
HAVING COUNT(*) > 1
ORDER BY org_id ASC, tag_type ASC, tag_value ASC`

	rows, err := db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []duplicateIdentifier
	for rows.Next() {
		var row duplicateIdentifier
		if err := rows.Scan(&row.OrgID, &row.TagType, &row.TagValue, &row.Count); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// loadDanglingReferences finds live assets whose current location is
// deleted and live locations whose parent is deleted.
func loadDanglingReferences(ctx context.Context, db *sql.DB, orgID string) ([]danglingReference, error) {
	query := `
SELECT 'asset', a.id, a.org_id, a.customer_identifier, a.current_location_id
FROM assets a
JOIN locations l ON l.id = a.current_location_id
WHERE a.deleted_at IS NULL
	AND l.deleted_at IS NOT NULL
	AND ($1 = '' OR a.org_id = $1)
UNION ALL
SELECT 'location', c.id, c.org_id, c.customer_identifier, c.parent_id
FROM locations c
JOIN locations p ON p.id = c.parent_id
WHERE c.deleted_at IS NULL
	AND p.deleted_at IS NOT NULL
	AND ($1 = '' OR c.org_id = $1)
ORDER BY 3, 1, 2`

	rows, err := db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []danglingReference
	for rows.Next() {
		var row danglingReference
		if err := rows.Scan(&row.Kind, &row.ID, &row.OrgID, &row.CustomerIdentifier, &row.ReferenceID); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// loadStuckJobs finds import jobs claimed longer ago than the
// threshold that never completed, usually a worker that died mid-run.
func loadStuckJobs(ctx context.Context, db *sql.DB, orgID string, stuckAfter time.Duration) ([]stuckJob, error) {
	cutoff := time.Now().UTC().Add(-stuckAfter)
	query := `
SELECT id, org_id, status, started_at, updated_at
FROM import_jobs
WHERE status = 'processing'
	AND updated_at < $2
	AND ($1 = '' OR org_id = $1)
ORDER BY updated_at ASC`

	rows, err := db.QueryContext(ctx, query, orgID, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []stuckJob
	for rows.Next() {
		var row stuckJob
		var startedAt sql.NullTime
		if err := rows.Scan(&row.ID, &row.OrgID, &row.Status, &startedAt, &row.UpdatedAt); err != nil {
			return nil, err
		}
		if startedAt.Valid {
			t := startedAt.Time.UTC()
			row.StartedAt = &t
		}
		row.UpdatedAt = row.UpdatedAt.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func writeOrphanIdentifiers(outDir string, rows []orphanIdentifier) error {
	path := filepath.Join(outDir, "orphan_identifiers.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"id",
		"org_id",
		"tag_type",
		"tag_value",
		"asset_id",
		"location_id",
		"created_at",
	}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			strconv.FormatInt(row.ID, 10),
			row.OrgID,
			row.TagType,
			row.TagValue,
			formatOptionalID(row.AssetID),
			formatOptionalID(row.LocationID),
			formatTime(row.CreatedAt),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeDuplicateIdentifiers(outDir string, rows []duplicateIdentifier) error {
	path := filepath.Join(outDir, "duplicate_identifiers.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"org_id", "tag_type", "tag_value", "count"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.OrgID,
			row.TagType,
			row.TagValue,
			strconv.Itoa(row.Count),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeDanglingReferences(outDir string, rows []danglingReference) error {
	path := filepath.Join(outDir, "dangling_references.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"kind",
		"id",
		"org_id",
		"customer_identifier",
		"reference_id",
	}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.Kind,
			strconv.FormatInt(row.ID, 10),
			row.OrgID,
			row.CustomerIdentifier,
			strconv.FormatInt(row.ReferenceID, 10),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeStuckJobs(outDir string, rows []stuckJob) error {
	path := filepath.Join(outDir, "stuck_jobs.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"id", "org_id", "status", "started_at", "updated_at"}); err != nil {
		return err
	}
	for _, row := range rows {
		startedAt := ""
		if row.StartedAt != nil {
			startedAt = formatTime(*row.StartedAt)
		}
		if err := writer.Write([]string{
			row.ID,
			row.OrgID,
			row.Status,
			startedAt,
			formatTime(row.UpdatedAt),
		}); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}

func formatOptionalID(value *int64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatInt(*value, 10)
}
