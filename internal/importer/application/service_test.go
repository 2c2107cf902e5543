package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	importer "github.com/trakrf/platform/internal/importer/domain"
	jobmem "github.com/trakrf/platform/internal/importer/infrastructure/memory"
	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

func newService(t *testing.T, cfg Config) (*Service, *jobmem.JobRepository) {
	t.Helper()
	jobs := jobmem.NewJobRepository()
	svc, err := NewService(jobs, cfg, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, jobs
}

func TestSubmitCreatesPendingJob(t *testing.T) {
	svc, _ := newService(t, Config{})
	ctx := context.Background()

	file := "customer_identifier,name,type,valid_from\nFORK-001,Forklift 1,forklift,2025-01-02\n"
	job, err := svc.Submit(ctx, "org-1", inventory.KindAsset, "assets.csv", strings.NewReader(file))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.ID == "" || job.Status != importer.StatusPending {
		t.Fatalf("unexpected job: %+v", job)
	}

	got, err := svc.GetStatus(ctx, "org-1", job.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if got == nil || got.Status != importer.StatusPending || got.Filename != "assets.csv" {
		t.Fatalf("unexpected status: %+v", got)
	}
}

func TestGetStatusCrossOrgIsAbsent(t *testing.T) {
	svc, _ := newService(t, Config{})
	ctx := context.Background()

	file := "customer_identifier,name,type,valid_from\nFORK-001,Forklift 1,forklift,\n"
	job, err := svc.Submit(ctx, "org-1", inventory.KindAsset, "assets.csv", strings.NewReader(file))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := svc.GetStatus(ctx, "org-2", job.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if got != nil {
		t.Fatal("expected cross-org status lookup to miss")
	}
}

func TestSubmitRejectsMalformedHeader(t *testing.T) {
	svc, jobs := newService(t, Config{})
	ctx := context.Background()

	file := "customer_identifier,name\nFORK-001,Forklift 1\n"
	_, err := svc.Submit(ctx, "org-1", inventory.KindAsset, "assets.csv", strings.NewReader(file))
	if !errors.Is(err, importer.ErrMalformedUpload) {
		t.Fatalf("expected ErrMalformedUpload, got %v", err)
	}
	if !strings.Contains(err.Error(), "valid_from") {
		t.Fatalf("expected missing column named, got %q", err)
	}

	// Header validation happens before job creation.
	pending, err := jobs.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no job created, got %d", len(pending))
	}
}

func TestSubmitAcceptsReorderedUppercaseHeader(t *testing.T) {
	svc, _ := newService(t, Config{})
	ctx := context.Background()

	file := "VALID_FROM,Type,NAME,Customer_Identifier\n2025-01-02,forklift,Forklift 1,FORK-001\n"
	if _, err := svc.Submit(ctx, "org-1", inventory.KindAsset, "assets.csv", strings.NewReader(file)); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestSubmitRejectsOversizedUpload(t *testing.T) {
	svc, _ := newService(t, Config{MaxUploadBytes: 16})
	ctx := context.Background()

	file := "customer_identifier,name,type,valid_from\nFORK-001,Forklift 1,forklift,2025-01-02\n"
	_, err := svc.Submit(ctx, "org-1", inventory.KindAsset, "assets.csv", strings.NewReader(file))
	if !errors.Is(err, importer.ErrUploadTooLarge) {
		t.Fatalf("expected ErrUploadTooLarge, got %v", err)
	}
}

func TestSubmitRejectsEmptyFile(t *testing.T) {
	svc, _ := newService(t, Config{})
	ctx := context.Background()

	_, err := svc.Submit(ctx, "org-1", inventory.KindAsset, "empty.csv", strings.NewReader(""))
	if !errors.Is(err, importer.ErrMalformedUpload) {
		t.Fatalf("expected ErrMalformedUpload, got %v", err)
	}
}

func TestSubmitRejectsUnknownKind(t *testing.T) {
	svc, _ := newService(t, Config{})
	ctx := context.Background()

	file := "customer_identifier,name,type,valid_from\n"
	_, err := svc.Submit(ctx, "org-1", inventory.EntityKind("vehicle"), "x.csv", strings.NewReader(file))
	if !errors.Is(err, inventory.ErrInvalidEntityKind) {
		t.Fatalf("expected ErrInvalidEntityKind, got %v", err)
	}
}
