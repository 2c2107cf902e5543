package importer

import (
	"errors"
	"strings"
	"testing"
	"time"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

func TestParseHeaderAcceptsAnyOrderAndCase(t *testing.T) {
	header, err := ParseHeader([]string{"Valid_From", "NAME", " type ", "customer_identifier", "extra_col"})
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if !header.Has("valid_from") || !header.Has("name") || !header.Has("type") {
		t.Fatal("expected required columns recognized")
	}
	if header.Has("missing") {
		t.Fatal("unexpected column")
	}
}

func TestParseHeaderRejectsMissingColumns(t *testing.T) {
	_, err := ParseHeader([]string{"customer_identifier", "name"})
	if !errors.Is(err, ErrMalformedUpload) {
		t.Fatalf("expected ErrMalformedUpload, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "type") || !strings.Contains(msg, "valid_from") {
		t.Fatalf("expected missing columns named, got %q", msg)
	}
	if strings.Contains(msg, "customer_identifier") {
		t.Fatalf("present column reported missing: %q", msg)
	}
}

func TestParseHeaderToleratesBOM(t *testing.T) {
	header, err := ParseHeader([]string{"\uFEFFcustomer_identifier", "name", "type", "valid_from"})
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if !header.Has("customer_identifier") {
		t.Fatal("expected BOM-prefixed column recognized")
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2025-01-02", "2025-01-02"},
		{"01/02/2025", "2025-01-02"},
		// Same digits, different separator, different rule: US slash is
		// month first, European dash is day first.
		{"02/01/2025", "2025-02-01"},
		{"02-01-2025", "2025-01-02"},
		{"31-12-2025", "2025-12-31"},
		{"12/31/2025", "2025-12-31"},
	}
	for _, tc := range tests {
		got, err := ParseDate(tc.input)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", tc.input, err)
		}
		if got == nil || got.Format("2006-01-02") != tc.want {
			t.Fatalf("ParseDate(%q) = %v, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParseDateEmptyAndInvalid(t *testing.T) {
	got, err := ParseDate("  ")
	if err != nil || got != nil {
		t.Fatalf("expected nil for empty date, got %v, %v", got, err)
	}
	if _, err := ParseDate("31/12/2025"); err == nil {
		t.Fatal("expected error for day-first slash date")
	}
	if _, err := ParseDate("not-a-date"); err == nil {
		t.Fatal("expected error for garbage date")
	}
}

func TestParseBool(t *testing.T) {
	truthy := []string{"true", "TRUE", "1", "yes", "Yes"}
	for _, input := range truthy {
		got, err := ParseBool(input)
		if err != nil || !got {
			t.Fatalf("ParseBool(%q) = %v, %v, want true", input, got, err)
		}
	}
	falsy := []string{"false", "False", "0", "no", "NO"}
	for _, input := range falsy {
		got, err := ParseBool(input)
		if err != nil || got {
			t.Fatalf("ParseBool(%q) = %v, %v, want false", input, got, err)
		}
	}
	if _, err := ParseBool("maybe"); err == nil {
		t.Fatal("expected error for unrecognized boolean")
	}
}

func mustHeader(t *testing.T, columns ...string) *Header {
	t.Helper()
	header, err := ParseHeader(columns)
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	return header
}

func TestParseRowFullAsset(t *testing.T) {
	header := mustHeader(t,
		"customer_identifier", "name", "type", "description",
		"valid_from", "valid_to", "is_active", "metadata",
		"current_location", "tag_type", "tag_value", "tag1_type", "tag1_value")
	record := []string{
		"FORK-001", "Forklift 1", "forklift", "North hall",
		"2025-01-02", "12/31/2025", "yes", `{"color":"red"}`,
		"DOCK-A", "rfid", "E200-0001", "ble", "AA:BB:01",
	}

	spec, err := ParseRow(header, record, inventory.KindAsset)
	if err != nil {
		t.Fatalf("parse row: %v", err)
	}
	if spec.CustomerIdentifier != "FORK-001" || spec.Name != "Forklift 1" || spec.Type != "forklift" {
		t.Fatalf("unexpected fields: %+v", spec)
	}
	if spec.ValidFrom == nil || !spec.ValidFrom.Equal(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected valid_from: %v", spec.ValidFrom)
	}
	if spec.ValidTo == nil || spec.ValidTo.Month() != time.December {
		t.Fatalf("unexpected valid_to: %v", spec.ValidTo)
	}
	if !spec.IsActive {
		t.Fatal("expected active")
	}
	if spec.Metadata["color"] != "red" {
		t.Fatalf("unexpected metadata: %v", spec.Metadata)
	}
	if spec.LocationRef != "DOCK-A" {
		t.Fatalf("unexpected location ref: %q", spec.LocationRef)
	}
	if len(spec.Tags) != 2 || spec.Tags[0].Type != inventory.IdentifierRFID || spec.Tags[1].Value != "AA:BB:01" {
		t.Fatalf("unexpected tags: %+v", spec.Tags)
	}
}

func TestParseRowDefaults(t *testing.T) {
	header := mustHeader(t, "customer_identifier", "name", "type", "valid_from")
	spec, err := ParseRow(header, []string{"DOCK-A", "Dock A", "", ""}, inventory.KindLocation)
	if err != nil {
		t.Fatalf("parse row: %v", err)
	}
	if !spec.IsActive {
		t.Fatal("expected is_active default true")
	}
	if spec.ValidFrom != nil {
		t.Fatalf("expected nil valid_from, got %v", spec.ValidFrom)
	}
	if len(spec.Tags) != 0 {
		t.Fatalf("expected no tags, got %+v", spec.Tags)
	}
}

func TestParseRowShortRecord(t *testing.T) {
	header := mustHeader(t, "customer_identifier", "name", "type", "valid_from", "description")
	spec, err := ParseRow(header, []string{"DOCK-A", "Dock A"}, inventory.KindLocation)
	if err != nil {
		t.Fatalf("parse row: %v", err)
	}
	if spec.Description != "" {
		t.Fatalf("expected empty description, got %q", spec.Description)
	}
}

func TestParseRowErrors(t *testing.T) {
	header := mustHeader(t,
		"customer_identifier", "name", "type", "valid_from", "valid_to",
		"is_active", "metadata", "tag_type", "tag_value")
	base := func() []string {
		return []string{"FORK-001", "Forklift 1", "forklift", "2025-01-02", "", "", "", "", ""}
	}

	tests := []struct {
		name   string
		mutate func(record []string)
		reason string
	}{
		{"missing customer identifier", func(r []string) { r[0] = "" }, "customer_identifier"},
		{"missing name", func(r []string) { r[1] = "" }, "name"},
		{"bad valid_from", func(r []string) { r[3] = "13/32/2025" }, "valid_from"},
		{"bad valid_to", func(r []string) { r[4] = "garbage" }, "valid_to"},
		{"inverted window", func(r []string) { r[3] = "2025-06-01"; r[4] = "2025-05-01" }, "valid_to"},
		{"bad boolean", func(r []string) { r[5] = "maybe" }, "is_active"},
		{"bad metadata", func(r []string) { r[6] = "{broken" }, "metadata"},
		{"tag value without type", func(r []string) { r[8] = "E200-0001" }, "tag_type"},
		{"unknown tag type", func(r []string) { r[7] = "wifi"; r[8] = "E200-0001" }, "wifi"},
	}
	for _, tc := range tests {
		record := base()
		tc.mutate(record)
		_, err := ParseRow(header, record, inventory.KindAsset)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.reason) {
			t.Fatalf("%s: expected reason mentioning %q, got %q", tc.name, tc.reason, err)
		}
	}
}

func TestJobValidate(t *testing.T) {
	job := &Job{ID: "job-1", OrgID: "org-1", Kind: inventory.KindAsset, Status: StatusPending}
	if err := job.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	bad := &Job{ID: "job-1", OrgID: "org-1", Kind: inventory.KindAsset, Status: JobStatus("failed")}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected invalid status rejected")
	}
}

func TestJobClone(t *testing.T) {
	started := time.Now().UTC()
	job := &Job{
		ID:        "job-1",
		OrgID:     "org-1",
		Kind:      inventory.KindAsset,
		Status:    StatusProcessing,
		Errors:    []RowError{{Row: 2, Reason: "bad date"}},
		Payload:   []byte("a,b"),
		StartedAt: &started,
	}
	clone := job.Clone()
	clone.Errors[0].Reason = "changed"
	clone.Payload[0] = 'z'
	*clone.StartedAt = started.Add(time.Hour)
	if job.Errors[0].Reason != "bad date" || job.Payload[0] != 'a' || !job.StartedAt.Equal(started) {
		t.Fatal("clone shares state with original")
	}
}
