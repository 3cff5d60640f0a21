package auth

// Roles carried by an Identity.
const (
	RoleTeam  = "team"
	RoleAdmin = "admin"
)

// Identity is stored in the request context after authentication. Admin
// identities have no team.
type Identity struct {
	TeamID string
	Email  string
	Role   string
}

// IsAdmin reports whether the identity came from an admin token.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}
