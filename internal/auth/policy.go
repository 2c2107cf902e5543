package auth

import (
	"net/http"
	"slices"
	"strings"
)

// Policy maps requests to the role they require.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds the stock policy with the given exemptions.
func NewDefaultPolicy(exemptPaths, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt reports whether a request skips auth entirely, such as
// health endpoints or the separately-signed ingest routes.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	path := r.URL.Path
	if _, ok := p.ExemptPaths[path]; ok {
		return true
	}
	return slices.ContainsFunc(p.ExemptPrefixes, func(prefix string) bool {
		return strings.HasPrefix(path, prefix)
	})
}

// RequiredRole resolves required role for the request. Reads need
// viewer, register writes need operator, full-register exports need
// admin.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/v1/assets", path == "/api/v1/locations", path == "/api/v1/imports":
		if method == http.MethodPost {
			return RoleOperator, true
		}
		return RoleViewer, true
	case strings.HasPrefix(path, "/api/v1/assets/"), strings.HasPrefix(path, "/api/v1/locations/"):
		if method == http.MethodGet {
			return RoleViewer, true
		}
		return RoleOperator, true
	case path == "/api/v1/identifiers/lookup",
		strings.HasPrefix(path, "/api/v1/imports/"),
		path == "/api/v1/movements",
		path == "/api/v1/summary":
		return RoleViewer, true
	case strings.HasPrefix(path, "/api/v1/identifiers/"):
		return RoleOperator, true
	case strings.HasPrefix(path, "/api/v1/exports/"):
		return RoleAdmin, true
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return RoleViewer, true
		}
		return RoleOperator, true
	}
	return "", false
}
