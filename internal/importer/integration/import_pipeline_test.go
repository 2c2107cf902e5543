package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	importerapp "github.com/trakrf/platform/internal/importer/application"
	importer "github.com/trakrf/platform/internal/importer/domain"
	importerpg "github.com/trakrf/platform/internal/importer/infrastructure/postgres"
	inventory "github.com/trakrf/platform/internal/inventory/domain"
	invpg "github.com/trakrf/platform/internal/inventory/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const testOrg = "org-it-import"

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := applyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM import_jobs WHERE org_id = $1", testOrg)
	_, _ = db.ExecContext(ctx, "DELETE FROM tag_identifiers WHERE org_id = $1", testOrg)
	_, _ = db.ExecContext(ctx, "DELETE FROM assets WHERE org_id = $1", testOrg)
	_, _ = db.ExecContext(ctx, "DELETE FROM locations WHERE org_id = $1", testOrg)
	return db
}

func applyMigrations(db *sql.DB) error {
	root := projectRoot()
	files := []string{
		filepath.Join(root, "migrations", "001_inventory.sql"),
		filepath.Join(root, "migrations", "002_import_jobs.sql"),
		filepath.Join(root, "migrations", "003_audit.sql"),
		filepath.Join(root, "migrations", "004_movements.sql"),
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(content)); err != nil {
			return err
		}
	}
	return nil
}

func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(filepath.Join(dir, "..", "..", ".."))
}

func testConfig() importerapp.Config {
	return importerapp.Config{Workers: 2, PollIntervalSeconds: 1, MaxUploadBytes: 1 << 20}
}

func TestImportPipelineEndToEnd(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	store, err := invpg.NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	dock := &inventory.Entity{OrgID: testOrg, Kind: inventory.KindLocation, CustomerIdentifier: "DOCK-A", Name: "Dock A", IsActive: true}
	if err := store.Entities().Create(ctx, dock); err != nil {
		t.Fatalf("seed location: %v", err)
	}

	jobs := importerpg.NewJobRepository(db)
	svc, err := importerapp.NewService(jobs, testConfig(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	runner, err := importerapp.NewRunner(jobs, store.Entities(), store.Identifiers(), testConfig(), nil, nil, svc.WakeChan())
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	// Row 1 is clean, row 2 has an unparseable date, row 3 creates its
	// entity but collides on row 1's tag value.
	csvBody := strings.Join([]string{
		"customer_identifier,name,type,valid_from,current_location,tag_type,tag_value",
		"FORK-101,Forklift 101,forklift,2025-01-15,DOCK-A,rfid,E200-IMP-0001",
		"FORK-102,Forklift 102,forklift,31/31/2025,,,",
		"FORK-103,Forklift 103,forklift,02-01-2025,,rfid,E200-IMP-0001",
	}, "\n")

	job, err := svc.Submit(ctx, testOrg, inventory.KindAsset, "fleet.csv", strings.NewReader(csvBody))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != importer.StatusPending {
		t.Fatalf("fresh job status = %s", job.Status)
	}

	if err := runner.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	done, err := svc.GetStatus(ctx, testOrg, job.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if done.Status != importer.StatusCompleted {
		t.Fatalf("status = %s, want completed", done.Status)
	}
	if done.TotalRows != 3 || done.ProcessedRows != 3 {
		t.Fatalf("rows = %d/%d, want 3/3", done.ProcessedRows, done.TotalRows)
	}
	if done.FailedRows != 2 {
		t.Fatalf("failed rows = %d, want 2", done.FailedRows)
	}
	if done.TagsCreated != 1 {
		t.Fatalf("tags created = %d, want 1", done.TagsCreated)
	}
	if len(done.Errors) != 2 {
		t.Fatalf("errors = %+v, want 2 entries", done.Errors)
	}
	if done.Errors[0].Row != 2 || done.Errors[1].Row != 3 {
		t.Fatalf("error rows = %d,%d, want 2,3", done.Errors[0].Row, done.Errors[1].Row)
	}
	if done.CompletedAt == nil {
		t.Fatal("completed job missing completed_at")
	}

	fork101, err := store.Entities().GetByCustomerIdentifier(ctx, testOrg, inventory.KindAsset, "FORK-101")
	if err != nil || fork101 == nil {
		t.Fatalf("FORK-101 missing: %v, %v", fork101, err)
	}
	if fork101.CurrentLocationID == nil || *fork101.CurrentLocationID != dock.ID {
		t.Fatalf("FORK-101 location = %v, want %d", fork101.CurrentLocationID, dock.ID)
	}

	fork102, err := store.Entities().GetByCustomerIdentifier(ctx, testOrg, inventory.KindAsset, "FORK-102")
	if err != nil {
		t.Fatalf("lookup FORK-102: %v", err)
	}
	if fork102 != nil {
		t.Fatalf("failed row must not create an entity: %+v", fork102)
	}

	// Row isolation: the entity stays even though its tag was rejected.
	fork103, err := store.Entities().GetByCustomerIdentifier(ctx, testOrg, inventory.KindAsset, "FORK-103")
	if err != nil || fork103 == nil {
		t.Fatalf("FORK-103 missing: %v, %v", fork103, err)
	}
	if fork103.ValidFrom == nil || fork103.ValidFrom.Month() != 1 || fork103.ValidFrom.Day() != 2 {
		t.Fatalf("FORK-103 valid_from = %v, want January 2 (day-first)", fork103.ValidFrom)
	}

	var payloadCleared bool
	if err := db.QueryRowContext(ctx, "SELECT payload IS NULL FROM import_jobs WHERE id = $1", job.ID).Scan(&payloadCleared); err != nil {
		t.Fatalf("check payload: %v", err)
	}
	if !payloadCleared {
		t.Fatal("payload kept after completion")
	}
}

func TestSubmitRejectsMalformedHeader(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	jobs := importerpg.NewJobRepository(db)
	svc, err := importerapp.NewService(jobs, testConfig(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Submit(ctx, testOrg, inventory.KindAsset, "bad.csv", strings.NewReader("customer_identifier,description\nA-1,widget\n"))
	if !errors.Is(err, importer.ErrMalformedUpload) {
		t.Fatalf("expected ErrMalformedUpload, got %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM import_jobs WHERE org_id = $1", testOrg).Scan(&count); err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if count != 0 {
		t.Fatalf("malformed upload created %d job(s)", count)
	}
}

func TestClaimIsExclusive(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	jobs := importerpg.NewJobRepository(db)
	svc, err := importerapp.NewService(jobs, testConfig(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	job, err := svc.Submit(ctx, testOrg, inventory.KindAsset, "claim.csv",
		strings.NewReader("customer_identifier,name,type,valid_from\nA-1,Widget,crate,\n"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	first, err := jobs.Claim(ctx, job.ID)
	if err != nil || !first {
		t.Fatalf("first claim: %v, claimed=%v", err, first)
	}
	second, err := jobs.Claim(ctx, job.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second {
		t.Fatal("processing job claimed twice")
	}
}

func TestStatusInvisibleAcrossOrgs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	jobs := importerpg.NewJobRepository(db)
	svc, err := importerapp.NewService(jobs, testConfig(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	job, err := svc.Submit(ctx, testOrg, inventory.KindAsset, "mine.csv",
		strings.NewReader("customer_identifier,name,type,valid_from\nA-1,Widget,crate,\n"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := svc.GetStatus(ctx, "org-it-import-other", job.ID)
	if err != nil {
		t.Fatalf("cross-org get: %v", err)
	}
	if got != nil {
		t.Fatalf("job visible across orgs: %+v", got)
	}
}
