package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

var (
	// ErrMalformedUpload means the file header failed validation; no job
	// is created for a malformed upload.
	ErrMalformedUpload = errors.New("importer: malformed upload")
	// ErrUploadTooLarge means the file exceeds the configured size cap.
	ErrUploadTooLarge = errors.New("importer: upload too large")
)

var requiredColumns = []string{"customer_identifier", "name", "type", "valid_from"}

// tagColumnPairs lists the accepted (type, value) column names for tag
// identifiers. The bare pair and three numbered pairs are recognized.
var tagColumnPairs = [][2]string{
	{"tag_type", "tag_value"},
	{"tag1_type", "tag1_value"},
	{"tag2_type", "tag2_value"},
	{"tag3_type", "tag3_value"},
}

// Accepted date layouts, first match wins: ISO, then US month-first,
// then European day-first.
var dateLayouts = []string{"2006-01-02", "01/02/2006", "02-01-2006"}

// Header maps normalized column names to their position in the file.
// Matching is case-insensitive and order-free; unknown columns are kept
// in the map but ignored by row parsing.
type Header struct {
	index map[string]int
}

// ParseHeader validates the header record against the required column
// set. It fails with ErrMalformedUpload listing every missing column.
func ParseHeader(record []string) (*Header, error) {
	index := make(map[string]int, len(record))
	for i, cell := range record {
		name := normalizeColumn(cell)
		if name == "" {
			continue
		}
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}
	var missing []string
	for _, column := range requiredColumns {
		if _, ok := index[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s", ErrMalformedUpload, strings.Join(missing, ", "))
	}
	return &Header{index: index}, nil
}

// Value returns the trimmed cell for a column, or "" when the column is
// absent or the record is short.
func (h *Header) Value(record []string, column string) string {
	if h == nil {
		return ""
	}
	i, ok := h.index[column]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// Has reports whether the header carries a column.
func (h *Header) Has(column string) bool {
	if h == nil {
		return false
	}
	_, ok := h.index[column]
	return ok
}

func normalizeColumn(cell string) string {
	cell = strings.TrimPrefix(cell, "\uFEFF")
	return strings.ToLower(strings.TrimSpace(cell))
}

// TagSpec is one identifier pair extracted from a row.
type TagSpec struct {
	Type  inventory.IdentifierType
	Value string
}

// RowSpec is the typed form of one data row, ready for entity creation.
type RowSpec struct {
	CustomerIdentifier string
	Name               string
	Type               string
	Description        string
	ValidFrom          *time.Time
	ValidTo            *time.Time
	IsActive           bool
	Metadata           map[string]any
	// LocationRef holds the customer identifier named in the
	// current_location column (assets) or parent column (locations).
	LocationRef string
	Tags        []TagSpec
}

// ParseRow converts one record into a RowSpec. Errors describe the bad
// field; they are recorded against the row, never escalated.
func ParseRow(h *Header, record []string, kind inventory.EntityKind) (*RowSpec, error) {
	if h == nil {
		return nil, errors.New("header required")
	}
	spec := &RowSpec{
		CustomerIdentifier: h.Value(record, "customer_identifier"),
		Name:               h.Value(record, "name"),
		Type:               h.Value(record, "type"),
		Description:        h.Value(record, "description"),
		IsActive:           true,
	}
	if spec.CustomerIdentifier == "" {
		return nil, errors.New("customer_identifier value required")
	}
	if spec.Name == "" {
		return nil, errors.New("name value required")
	}

	validFrom, err := ParseDate(h.Value(record, "valid_from"))
	if err != nil {
		return nil, fmt.Errorf("valid_from: %v", err)
	}
	spec.ValidFrom = validFrom
	validTo, err := ParseDate(h.Value(record, "valid_to"))
	if err != nil {
		return nil, fmt.Errorf("valid_to: %v", err)
	}
	spec.ValidTo = validTo
	if spec.ValidFrom != nil && spec.ValidTo != nil && !spec.ValidTo.After(*spec.ValidFrom) {
		return nil, errors.New("valid_to must be after valid_from")
	}

	if raw := h.Value(record, "is_active"); raw != "" {
		active, err := ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("is_active: %v", err)
		}
		spec.IsActive = active
	}

	if raw := h.Value(record, "metadata"); raw != "" {
		metadata := map[string]any{}
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return nil, errors.New("metadata: invalid json object")
		}
		spec.Metadata = metadata
	}

	switch kind {
	case inventory.KindAsset:
		spec.LocationRef = h.Value(record, "current_location")
	case inventory.KindLocation:
		spec.LocationRef = h.Value(record, "parent")
	}

	for _, pair := range tagColumnPairs {
		value := h.Value(record, pair[1])
		if value == "" {
			continue
		}
		rawType := h.Value(record, pair[0])
		if rawType == "" {
			return nil, fmt.Errorf("%s value requires a %s", pair[1], pair[0])
		}
		tagType, ok := inventory.NormalizeIdentifierType(rawType)
		if !ok {
			return nil, fmt.Errorf("%s: unknown identifier type %q", pair[0], rawType)
		}
		spec.Tags = append(spec.Tags, TagSpec{Type: tagType, Value: value})
	}
	return spec, nil
}

// ParseDate parses a date cell. Empty means unset. Layouts are tried in
// a fixed order and the first match wins, so "02/01/2025" is February 1
// (US) while "02-01-2025" is January 2 (European).
func ParseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			parsed = parsed.UTC()
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", value)
}

// ParseBool parses a boolean cell from the accepted literal set.
func ParseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("unrecognized boolean %q", value)
	}
}
