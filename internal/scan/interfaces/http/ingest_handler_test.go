package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
	invmem "github.com/trakrf/platform/internal/inventory/infrastructure/memory"
	"github.com/trakrf/platform/internal/scan/application"
	scanmem "github.com/trakrf/platform/internal/scan/infrastructure/memory"
)

type scanEnv struct {
	ingest    *IngestHandler
	movements *MovementHandler
	store     *invmem.Store
	asset     *inventory.Entity
	dock      *inventory.Entity
}

func newScanEnv(t *testing.T) *scanEnv {
	t.Helper()
	ctx := context.Background()
	store := invmem.NewStore()
	repo := scanmem.NewMovementRepository()

	service, err := application.NewService(store.Entities(), store.Identifiers(), repo, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ingest, err := NewIngestHandler(service, nil, nil)
	if err != nil {
		t.Fatalf("new ingest handler: %v", err)
	}
	movements, err := NewMovementHandler(service)
	if err != nil {
		t.Fatalf("new movement handler: %v", err)
	}

	env := &scanEnv{ingest: ingest, movements: movements, store: store}
	env.dock = &inventory.Entity{OrgID: "org-1", Kind: inventory.KindLocation, CustomerIdentifier: "DOCK-A", Name: "Dock A", IsActive: true}
	if err := store.Entities().Create(ctx, env.dock); err != nil {
		t.Fatalf("seed dock: %v", err)
	}
	env.asset = &inventory.Entity{OrgID: "org-1", Kind: inventory.KindAsset, CustomerIdentifier: "FORK-001", Name: "Forklift 1", IsActive: true}
	if err := store.Entities().Create(ctx, env.asset); err != nil {
		t.Fatalf("seed asset: %v", err)
	}
	tag := &inventory.TagIdentifier{OrgID: "org-1", Type: inventory.IdentifierRFID, Value: "E200-0001", IsActive: true}
	tag.SetOwner(env.asset.Ref())
	if err := store.Identifiers().Add(ctx, tag); err != nil {
		t.Fatalf("seed tag: %v", err)
	}
	return env
}

func postScan(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ingest/scan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIngestScanMovesAsset(t *testing.T) {
	env := newScanEnv(t)

	rec := postScan(env.ingest, `{"org_id":"org-1","type":"rfid","value":"E200-0001","location":"DOCK-A","reader_id":"reader-7"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Matched bool   `json:"matched"`
		Moved   bool   `json:"moved"`
		Kind    string `json:"kind"`
		To      *int64 `json:"to_location_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Matched || !resp.Moved || resp.Kind != "asset" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.To == nil || *resp.To != env.dock.ID {
		t.Fatalf("unexpected destination: %v", resp.To)
	}
}

func TestIngestScanRepeatIsAcknowledged(t *testing.T) {
	env := newScanEnv(t)

	body := `{"org_id":"org-1","type":"rfid","value":"E200-0001","location":"DOCK-A"}`
	if rec := postScan(env.ingest, body); rec.Code != http.StatusOK {
		t.Fatalf("first scan: %d", rec.Code)
	}
	rec := postScan(env.ingest, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("second scan: %d", rec.Code)
	}
	var resp struct {
		Matched bool `json:"matched"`
		Moved   bool `json:"moved"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Matched || resp.Moved {
		t.Fatalf("expected acknowledged repeat, got %+v", resp)
	}
}

func TestIngestScanUnknownTag(t *testing.T) {
	env := newScanEnv(t)

	rec := postScan(env.ingest, `{"org_id":"org-1","type":"rfid","value":"NOPE"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestIngestScanBadRequests(t *testing.T) {
	env := newScanEnv(t)

	cases := map[string]string{
		"invalid json":  `{"org_id":`,
		"missing org":   `{"type":"rfid","value":"E200-0001"}`,
		"missing type":  `{"org_id":"org-1","value":"E200-0001"}`,
		"missing value": `{"org_id":"org-1","type":"rfid"}`,
		"unknown type":  `{"org_id":"org-1","type":"wifi","value":"X"}`,
	}
	for name, body := range cases {
		if rec := postScan(env.ingest, body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestIngestScanRejectsGet(t *testing.T) {
	env := newScanEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/ingest/scan", nil)
	rec := httptest.NewRecorder()
	env.ingest.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestIngestScanObservedAtUnits(t *testing.T) {
	env := newScanEnv(t)

	// Milliseconds.
	body := fmt.Sprintf(`{"org_id":"org-1","type":"rfid","value":"E200-0001","location":"DOCK-A","observed_at":%d}`, int64(1756100000000))
	if rec := postScan(env.ingest, body); rec.Code != http.StatusOK {
		t.Fatalf("ms scan: %d", rec.Code)
	}
	history := listMovements(t, env, env.asset.ID)
	if len(history) != 1 || history[0].ObservedAt.Unix() != 1756100000 {
		t.Fatalf("unexpected ms movement: %+v", history)
	}

	// Seconds, different location so a second movement is written.
	body = fmt.Sprintf(`{"org_id":"org-1","type":"rfid","value":"E200-0001","location":"DOCK-B","observed_at":%d}`, int64(1756100100))
	dockB := &inventory.Entity{OrgID: "org-1", Kind: inventory.KindLocation, CustomerIdentifier: "DOCK-B", Name: "Dock B", IsActive: true}
	if err := env.store.Entities().Create(context.Background(), dockB); err != nil {
		t.Fatalf("seed dock B: %v", err)
	}
	if rec := postScan(env.ingest, body); rec.Code != http.StatusOK {
		t.Fatalf("s scan: %d", rec.Code)
	}
	history = listMovements(t, env, env.asset.ID)
	if len(history) != 2 || history[0].ObservedAt.Unix() != 1756100100 {
		t.Fatalf("unexpected s movement: %+v", history)
	}
}

func listMovements(t *testing.T, env *scanEnv, assetID int64) []movementResponse {
	t.Helper()
	rec := doMovementRequest(env.movements, fmt.Sprintf("/api/v1/assets/%d/movements", assetID), "org-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("list movements: %d: %s", rec.Code, rec.Body.String())
	}
	var resp movementListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode movements: %v", err)
	}
	return resp.Items
}
