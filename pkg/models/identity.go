package models

// RoleAdmin grants elevated mutation rights: admins may activate any
// workflow and transition any task regardless of assignee.
const RoleAdmin = "admin"

// Identity is the verified caller identity extracted from an access token.
// Roles is a claim set; operations check for specific capabilities rather
// than boolean flags on a user record.
type Identity struct {
	Subject string   `json:"sub"`
	Email   string   `json:"email"`
	Roles   []string `json:"roles"`
}

// HasRole reports whether the identity carries the given role claim.
func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i.HasRole(RoleAdmin)
}
