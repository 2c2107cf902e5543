package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/trakrf/platform/internal/auth"
	"github.com/trakrf/platform/internal/importer/application"
	jobmem "github.com/trakrf/platform/internal/importer/infrastructure/memory"
)

func newHandler(t *testing.T, cfg application.Config) *ImportHandler {
	t.Helper()
	svc, err := application.NewService(jobmem.NewJobRepository(), cfg, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewImportHandler(svc, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func multipartBody(t *testing.T, kind, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if kind != "" {
		if err := mw.WriteField("kind", kind); err != nil {
			t.Fatalf("write kind field: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func doUpload(handler *ImportHandler, body *bytes.Buffer, contentType, orgID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", body)
	req.Header.Set("Content-Type", contentType)
	if orgID != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), orgID, auth.RoleOperator, "user-1"))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func doStatus(handler *ImportHandler, jobID, orgID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/imports/"+jobID, nil)
	if orgID != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), orgID, auth.RoleViewer, "user-1"))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

const validCSV = "customer_identifier,name,type,valid_from\nFORK-001,Forklift 1,forklift,2025-01-02\n"

func TestSubmitReturnsJobID(t *testing.T) {
	handler := newHandler(t, application.Config{})

	body, contentType := multipartBody(t, "asset", "assets.csv", validCSV)
	rec := doUpload(handler, body, contentType, "org-1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp submitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID == "" || resp.Status != "pending" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	status := doStatus(handler, resp.JobID, "org-1")
	if status.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", status.Code)
	}
	if !strings.Contains(status.Body.String(), `"errors":[]`) {
		t.Fatalf("expected empty errors array, got %s", status.Body.String())
	}
	var job jobResponse
	if err := json.Unmarshal(status.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if job.ID != resp.JobID || job.Kind != "asset" || job.Status != "pending" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestSubmitWithoutOrgIsUnauthorized(t *testing.T) {
	handler := newHandler(t, application.Config{})

	body, contentType := multipartBody(t, "asset", "assets.csv", validCSV)
	rec := doUpload(handler, body, contentType, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSubmitMalformedHeader(t *testing.T) {
	handler := newHandler(t, application.Config{})

	body, contentType := multipartBody(t, "asset", "assets.csv", "customer_identifier,name\nFORK-001,Forklift 1\n")
	rec := doUpload(handler, body, contentType, "org-1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	msg := rec.Body.String()
	if !strings.Contains(msg, "type") || !strings.Contains(msg, "valid_from") {
		t.Fatalf("expected missing columns named, got %q", msg)
	}
}

func TestSubmitMissingFilePart(t *testing.T) {
	handler := newHandler(t, application.Config{})

	body, contentType := multipartBody(t, "asset", "", "")
	rec := doUpload(handler, body, contentType, "org-1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSubmitUnknownKind(t *testing.T) {
	handler := newHandler(t, application.Config{})

	body, contentType := multipartBody(t, "vehicle", "x.csv", validCSV)
	rec := doUpload(handler, body, contentType, "org-1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSubmitOversizedUpload(t *testing.T) {
	handler := newHandler(t, application.Config{MaxUploadBytes: 16})

	body, contentType := multipartBody(t, "asset", "assets.csv", validCSV)
	rec := doUpload(handler, body, contentType, "org-1")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestStatusNotFound(t *testing.T) {
	handler := newHandler(t, application.Config{})

	rec := doStatus(handler, "no-such-job", "org-1")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStatusCrossOrgIsNotFound(t *testing.T) {
	handler := newHandler(t, application.Config{})

	body, contentType := multipartBody(t, "location", "locations.csv", validCSV)
	rec := doUpload(handler, body, contentType, "org-1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit failed: %d", rec.Code)
	}
	var resp submitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	status := doStatus(handler, resp.JobID, "org-2")
	if status.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for cross-org status, got %d", status.Code)
	}
}
