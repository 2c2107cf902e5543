package auth

import (
	"net/http"
	"strings"
)

// Middleware authenticates API requests and enforces the route policy.
type Middleware struct {
	Secret []byte
	Policy Policy
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy) *Middleware {
	return &Middleware{Secret: secret, Policy: policy}
}

// Wrap returns a handler that rejects requests whose token is absent,
// invalid, or below the role the route requires. Exempt routes and
// routes without a policy entry pass through untouched.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		required, enforced := m.requirement(r)
		if !enforced {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := ParseJWT(bearerToken(r), m.Secret)
		if err != nil {
			http.Error(w, "missing or invalid token", http.StatusUnauthorized)
			return
		}
		role, _ := NormalizeRole(claims.Role)
		if !role.Meets(required) {
			http.Error(w, "insufficient role", http.StatusForbidden)
			return
		}
		ctx := WithIdentity(r.Context(), claims.OrgID, role, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) requirement(r *http.Request) (Role, bool) {
	if m.Policy.IsExempt(r) {
		return "", false
	}
	return m.Policy.RequiredRole(r)
}

// bearerToken pulls the credential out of the Authorization header.
// The scheme is matched case-insensitively per RFC 6750.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:6], "Bearer") || header[6] != ' ' {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
