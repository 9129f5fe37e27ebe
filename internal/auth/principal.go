package auth

// Principal represents the authenticated identity attached to a request.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Can proxies the capability check so callers hold a single predicate.
func (p Principal) Can(action Action) bool {
	return p.Role.Can(action)
}

// Privileged reports whether the principal bypasses row-level scoping.
func (p Principal) Privileged() bool {
	return p.Role.Privileged()
}
