package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleRider      UserRole = "rider"
	RoleDepartment UserRole = "department"
	RoleAdmin      UserRole = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleRider, RoleDepartment, RoleAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role may act on complaints owned by others.
// Department staff share the admin view.
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin || r == RoleDepartment
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"is_active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	TotalCount int `json:"total_count"`
}
