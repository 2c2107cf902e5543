package auth

import "context"

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	OrgID   string
	Role    Role
	Subject string
}

type contextKey struct{}

var identityKey contextKey

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, orgID string, role Role, subject string) context.Context {
	return context.WithValue(ctx, identityKey, Identity{OrgID: orgID, Role: role, Subject: subject})
}

// IdentityFromContext extracts the caller identity. The zero Identity
// means the request was not authenticated.
func IdentityFromContext(ctx context.Context) Identity {
	if ctx == nil {
		return Identity{}
	}
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}

// OrgIDFromContext extracts the caller org id, or "" when absent.
func OrgIDFromContext(ctx context.Context) string {
	return IdentityFromContext(ctx).OrgID
}

// RoleFromContext extracts the caller role, or "" when absent.
func RoleFromContext(ctx context.Context) Role {
	return IdentityFromContext(ctx).Role
}

// SubjectFromContext extracts the token subject, or "" when absent.
func SubjectFromContext(ctx context.Context) string {
	return IdentityFromContext(ctx).Subject
}
