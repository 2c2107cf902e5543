package application

import (
	"context"
	"testing"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
	"github.com/trakrf/platform/internal/inventory/infrastructure/memory"
)

func seedInventory(t *testing.T) (*ViewAssembler, *CreationService) {
	t.Helper()
	store := memory.NewStore()
	creation, err := NewCreationService(store)
	if err != nil {
		t.Fatalf("new creation service: %v", err)
	}
	assembler, err := NewViewAssembler(store.Entities(), store.Identifiers())
	if err != nil {
		t.Fatalf("new view assembler: %v", err)
	}
	return assembler, creation
}

func TestGetViewAbsent(t *testing.T) {
	assembler, _ := seedInventory(t)

	view, err := assembler.GetView(context.Background(), "org-1", inventory.KindAsset, 12345)
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if view != nil {
		t.Fatalf("expected nil view, got %+v", view)
	}
}

func TestGetViewCrossOrgIsAbsent(t *testing.T) {
	assembler, creation := seedInventory(t)
	ctx := context.Background()

	created, err := creation.Create(ctx, "org-1", inventory.KindAsset, CreateEntityRequest{
		CustomerIdentifier: "FORK-001",
		Name:               "Forklift 1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	view, err := assembler.GetView(ctx, "org-2", inventory.KindAsset, created.ID)
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if view != nil {
		t.Fatal("expected cross-org read to look absent")
	}
}

func TestGetViewIdentifiersNeverNil(t *testing.T) {
	assembler, creation := seedInventory(t)
	ctx := context.Background()

	created, err := creation.Create(ctx, "org-1", inventory.KindLocation, CreateEntityRequest{
		CustomerIdentifier: "DOCK-A",
		Name:               "Dock A",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	view, err := assembler.GetView(ctx, "org-1", inventory.KindLocation, created.ID)
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if view == nil {
		t.Fatal("expected view")
	}
	if view.Identifiers == nil {
		t.Fatal("expected non-nil identifier slice")
	}
	if len(view.Identifiers) != 0 {
		t.Fatalf("expected empty identifiers, got %d", len(view.Identifiers))
	}
}

func TestListViewsBatch(t *testing.T) {
	assembler, creation := seedInventory(t)
	ctx := context.Background()

	specs := []struct {
		customerID  string
		identifiers []IdentifierInput
	}{
		{"FORK-001", []IdentifierInput{{Type: "rfid", Value: "E200-0001"}, {Type: "ble", Value: "AA:01"}}},
		{"FORK-002", nil},
		{"FORK-003", []IdentifierInput{{Type: "barcode", Value: "BC-0003"}}},
	}
	for _, spec := range specs {
		if _, err := creation.Create(ctx, "org-1", inventory.KindAsset, CreateEntityRequest{
			CustomerIdentifier: spec.customerID,
			Name:               spec.customerID,
			Identifiers:        spec.identifiers,
		}); err != nil {
			t.Fatalf("create %s: %v", spec.customerID, err)
		}
	}
	// Another org's inventory must not leak into the listing.
	if _, err := creation.Create(ctx, "org-2", inventory.KindAsset, CreateEntityRequest{
		CustomerIdentifier: "FORK-001",
		Name:               "Other org forklift",
	}); err != nil {
		t.Fatalf("create other org: %v", err)
	}

	views, total, err := assembler.ListViews(ctx, "org-1", inventory.KindAsset, 50, 0)
	if err != nil {
		t.Fatalf("list views: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if len(views) != 3 {
		t.Fatalf("expected 3 views, got %d", len(views))
	}
	if views[0].CustomerIdentifier != "FORK-001" || views[2].CustomerIdentifier != "FORK-003" {
		t.Fatalf("expected id order, got %s..%s", views[0].CustomerIdentifier, views[2].CustomerIdentifier)
	}
	if len(views[0].Identifiers) != 2 {
		t.Fatalf("expected 2 identifiers on first view, got %d", len(views[0].Identifiers))
	}
	if views[1].Identifiers == nil || len(views[1].Identifiers) != 0 {
		t.Fatalf("expected empty non-nil identifiers on second view, got %+v", views[1].Identifiers)
	}
	if len(views[2].Identifiers) != 1 {
		t.Fatalf("expected 1 identifier on third view, got %d", len(views[2].Identifiers))
	}
}

func TestListViewsPagination(t *testing.T) {
	assembler, creation := seedInventory(t)
	ctx := context.Background()

	for _, customerID := range []string{"DOCK-A", "DOCK-B", "DOCK-C", "DOCK-D"} {
		if _, err := creation.Create(ctx, "org-1", inventory.KindLocation, CreateEntityRequest{
			CustomerIdentifier: customerID,
			Name:               customerID,
		}); err != nil {
			t.Fatalf("create %s: %v", customerID, err)
		}
	}

	views, total, err := assembler.ListViews(ctx, "org-1", inventory.KindLocation, 2, 2)
	if err != nil {
		t.Fatalf("list views: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected total 4, got %d", total)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views on page, got %d", len(views))
	}
	if views[0].CustomerIdentifier != "DOCK-C" {
		t.Fatalf("expected DOCK-C first on page, got %s", views[0].CustomerIdentifier)
	}
}

func TestListViewsEmptyOrg(t *testing.T) {
	assembler, _ := seedInventory(t)

	views, total, err := assembler.ListViews(context.Background(), "org-1", inventory.KindAsset, 50, 0)
	if err != nil {
		t.Fatalf("list views: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected total 0, got %d", total)
	}
	if views == nil || len(views) != 0 {
		t.Fatalf("expected empty non-nil page, got %+v", views)
	}
}
