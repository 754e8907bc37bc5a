package model

import "time"

// Roles recognised by the admin console.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// Identity is the authenticated principal supplied by the token collaborator.
type Identity struct {
	Subject   string    `json:"sub"`
	Role      string    `json:"role"`
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CanEdit reports whether the identity may change content.
func (i *Identity) CanEdit() bool {
	return i != nil && (i.Role == RoleAdmin || i.Role == RoleEditor)
}
