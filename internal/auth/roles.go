package auth

// Role is the coarse permission tier carried by a token. Tiers are
// strictly ordered: admin above operator above viewer.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

var roleOrder = [...]Role{RoleViewer, RoleOperator, RoleAdmin}

func (r Role) rank() int {
	for i, candidate := range roleOrder {
		if r == candidate {
			return i + 1
		}
	}
	return 0
}

// Meets reports whether r grants at least the privileges of required.
// Unknown roles rank below every known role.
func (r Role) Meets(required Role) bool {
	return r.rank() >= required.rank()
}

// NormalizeRole validates a role string from an untrusted source.
func NormalizeRole(value string) (Role, bool) {
	role := Role(value)
	if role.rank() == 0 {
		return "", false
	}
	return role, true
}
