package domain

// Role names carried in access-token scopes.
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// HasRole reports whether the principal carries the given role. The core
// exposes this capability check for the routing layer; it never enforces
// roles on its own behalf.
func HasRole(p *Principal, role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
