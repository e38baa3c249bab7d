package domain

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleReader = "reader"
)

// Principal is the authenticated caller of the backend, taken from the
// bearer token claims.
type Principal struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
}

// CanWrite reports whether the principal may create or delete objects.
func (p Principal) CanWrite() bool {
	return p.Role == RoleAdmin || p.Role == RoleEditor
}
