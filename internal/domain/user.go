package domain

import "encoding/json"

// User roles. The role field on the stored record is the sole authorization
// source of truth; there is no audit trail of role changes.
const (
	RoleAdmin   = "admin"
	RoleDefault = "default"
)

// User represents a marketplace account keyed by email. Profile fields are
// schemaless and live in Doc; Role is extracted at read time.
type User struct {
	Email string
	Role  string
	Doc   map[string]any
}

// IsAdmin reports whether the account carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// MarshalJSON flattens profile fields with the identity columns.
func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Doc)+2)
	for k, v := range u.Doc {
		out[k] = v
	}
	out["email"] = u.Email
	if u.Role != "" {
		out["role"] = u.Role
	}
	return json.Marshal(out)
}
