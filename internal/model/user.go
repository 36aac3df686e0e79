package model

import "time"

// UserRole represents the role of a user in the system
type UserRole string

const (
	UserRoleUser  UserRole = "user"  // Default role
	UserRoleAdmin UserRole = "admin" // May trigger cycles and read any user's matches
)

// User is the engine's read-only view of an account. Accounts are created
// and edited elsewhere; matching only needs the identity and contact fields.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      UserRole  `json:"role"`
	Active    bool      `json:"active"`
	CreatedOn time.Time `json:"created_on"`
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

