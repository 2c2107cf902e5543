package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/trakrf/platform/internal/auth"
	"github.com/trakrf/platform/internal/inventory/application"
	inventory "github.com/trakrf/platform/internal/inventory/domain"
	"github.com/trakrf/platform/internal/inventory/infrastructure/memory"
)

type fixture struct {
	assets      *EntityHandler
	locations   *EntityHandler
	identifiers *IdentifierHandler
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	creation, err := application.NewCreationService(store)
	if err != nil {
		t.Fatalf("new creation service: %v", err)
	}
	views, err := application.NewViewAssembler(store.Entities(), store.Identifiers())
	if err != nil {
		t.Fatalf("new view assembler: %v", err)
	}
	entityService, err := application.NewEntityService(store)
	if err != nil {
		t.Fatalf("new entity service: %v", err)
	}
	identifierService, err := application.NewIdentifierService(store.Entities(), store.Identifiers())
	if err != nil {
		t.Fatalf("new identifier service: %v", err)
	}
	assets, err := NewEntityHandler(inventory.KindAsset, creation, views, entityService, identifierService, nil)
	if err != nil {
		t.Fatalf("new asset handler: %v", err)
	}
	locations, err := NewEntityHandler(inventory.KindLocation, creation, views, entityService, identifierService, nil)
	if err != nil {
		t.Fatalf("new location handler: %v", err)
	}
	identifiers, err := NewIdentifierHandler(identifierService, nil)
	if err != nil {
		t.Fatalf("new identifier handler: %v", err)
	}
	return fixture{assets: assets, locations: locations, identifiers: identifiers}
}

func doRequest(handler http.Handler, method, path, body, orgID string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if orgID != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), orgID, auth.RoleOperator, "user-1"))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateAssetReturns201(t *testing.T) {
	fx := newFixture(t)

	rec := doRequest(fx.assets, http.MethodPost, "/api/v1/assets", `{
		"customer_identifier": "FORK-001",
		"name": "Forklift 1",
		"type": "forklift",
		"identifiers": [{"type": "rfid", "value": "E200-0001"}]
	}`, "org-1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp entityViewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == 0 || resp.Kind != "asset" || resp.CustomerIdentifier != "FORK-001" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Identifiers) != 1 || resp.Identifiers[0].Value != "E200-0001" {
		t.Fatalf("unexpected identifiers: %+v", resp.Identifiers)
	}
}

func TestCreateWithoutOrgIsUnauthorized(t *testing.T) {
	fx := newFixture(t)

	rec := doRequest(fx.assets, http.MethodPost, "/api/v1/assets", `{"customer_identifier":"X","name":"X"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateDuplicateIdentifierConflicts(t *testing.T) {
	fx := newFixture(t)

	first := doRequest(fx.assets, http.MethodPost, "/api/v1/assets", `{
		"customer_identifier": "FORK-001",
		"name": "Forklift 1",
		"identifiers": [{"type": "rfid", "value": "E200-0001"}]
	}`, "org-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("seed create failed: %d", first.Code)
	}

	second := doRequest(fx.assets, http.MethodPost, "/api/v1/assets", `{
		"customer_identifier": "FORK-002",
		"name": "Forklift 2",
		"identifiers": [{"type": "rfid", "value": "E200-0001"}]
	}`, "org-1")
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", second.Code, second.Body.String())
	}

	// The losing request must leave nothing behind.
	missing := doRequest(fx.assets, http.MethodGet, "/api/v1/assets/2", "", "org-1")
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected losing entity absent, got %d", missing.Code)
	}
}

func TestCreateInvalidIdentifierType(t *testing.T) {
	fx := newFixture(t)

	rec := doRequest(fx.assets, http.MethodPost, "/api/v1/assets", `{
		"customer_identifier": "FORK-001",
		"name": "Forklift 1",
		"identifiers": [{"type": "wifi", "value": "X"}]
	}`, "org-1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetSerializesEmptyIdentifiersArray(t *testing.T) {
	fx := newFixture(t)

	created := doRequest(fx.locations, http.MethodPost, "/api/v1/locations", `{
		"customer_identifier": "DOCK-A",
		"name": "Dock A"
	}`, "org-1")
	if created.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", created.Code)
	}
	var resp entityViewResponse
	if err := json.Unmarshal(created.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec := doRequest(fx.locations, http.MethodGet, "/api/v1/locations/1", "", "org-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"identifiers":[]`) {
		t.Fatalf("expected empty identifiers array in body, got %s", rec.Body.String())
	}
}

func TestGetCrossOrgIsNotFound(t *testing.T) {
	fx := newFixture(t)

	created := doRequest(fx.assets, http.MethodPost, "/api/v1/assets", `{
		"customer_identifier": "FORK-001",
		"name": "Forklift 1"
	}`, "org-1")
	if created.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", created.Code)
	}

	rec := doRequest(fx.assets, http.MethodGet, "/api/v1/assets/1", "", "org-2")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for cross-org read, got %d", rec.Code)
	}
}

func TestListEnvelope(t *testing.T) {
	fx := newFixture(t)

	for _, payload := range []string{
		`{"customer_identifier": "FORK-001", "name": "Forklift 1", "identifiers": [{"type":"rfid","value":"E1"}]}`,
		`{"customer_identifier": "FORK-002", "name": "Forklift 2"}`,
	} {
		if rec := doRequest(fx.assets, http.MethodPost, "/api/v1/assets", payload, "org-1"); rec.Code != http.StatusCreated {
			t.Fatalf("create failed: %d", rec.Code)
		}
	}

	rec := doRequest(fx.assets, http.MethodGet, "/api/v1/assets?limit=1&offset=0", "", "org-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("expected total 2, got %d", resp.Total)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 item on page, got %d", len(resp.Items))
	}
	if resp.Items[0].Identifiers == nil {
		t.Fatal("expected identifiers array present")
	}
}

func TestUpdateEntity(t *testing.T) {
	fx := newFixture(t)

	if rec := doRequest(fx.assets, http.MethodPost, "/api/v1/assets", `{"customer_identifier":"FORK-001","name":"Forklift 1"}`, "org-1"); rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", rec.Code)
	}

	rec := doRequest(fx.assets, http.MethodPut, "/api/v1/assets/1", `{"name":"Forklift 1 (repainted)"}`, "org-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	missing := doRequest(fx.assets, http.MethodPut, "/api/v1/assets/99", `{"name":"Ghost"}`, "org-1")
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing entity, got %d", missing.Code)
	}
}

func TestDeleteEntityThenGone(t *testing.T) {
	fx := newFixture(t)

	if rec := doRequest(fx.assets, http.MethodPost, "/api/v1/assets", `{"customer_identifier":"FORK-001","name":"Forklift 1"}`, "org-1"); rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", rec.Code)
	}

	rec := doRequest(fx.assets, http.MethodDelete, "/api/v1/assets/1", "", "org-1")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	repeat := doRequest(fx.assets, http.MethodDelete, "/api/v1/assets/1", "", "org-1")
	if repeat.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeat delete, got %d", repeat.Code)
	}
	gone := doRequest(fx.assets, http.MethodGet, "/api/v1/assets/1", "", "org-1")
	if gone.Code != http.StatusNotFound {
		t.Fatalf("expected deleted entity absent, got %d", gone.Code)
	}
}

func TestAttachIdentifierRoute(t *testing.T) {
	fx := newFixture(t)

	if rec := doRequest(fx.assets, http.MethodPost, "/api/v1/assets", `{"customer_identifier":"FORK-001","name":"Forklift 1"}`, "org-1"); rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", rec.Code)
	}

	rec := doRequest(fx.assets, http.MethodPost, "/api/v1/assets/1/identifiers", `{"type":"ble","value":"AA:BB:01"}`, "org-1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp identifierResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == 0 || resp.Type != "ble" {
		t.Fatalf("unexpected identifier: %+v", resp)
	}

	dup := doRequest(fx.assets, http.MethodPost, "/api/v1/assets/1/identifiers", `{"type":"ble","value":"AA:BB:01"}`, "org-1")
	if dup.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", dup.Code)
	}

	missing := doRequest(fx.assets, http.MethodPost, "/api/v1/assets/42/identifiers", `{"type":"ble","value":"AA:BB:02"}`, "org-1")
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.Code)
	}
}
