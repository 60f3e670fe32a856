package domain

import "time"

const (
	RoleAdmin   = "admin"
	RoleScanner = "scanner"
)

// Operator is a login account: registry admins and gate scanner operators
// share the users table, separated by role.
type Operator struct {
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Organization string     `json:"organization"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}
