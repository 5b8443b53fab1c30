package domain

import "time"

// Role enumerates user privilege levels.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Elevated reports whether the role can view and work other users' tickets.
func (r Role) Elevated() bool {
	return r == RoleModerator || r == RoleAdmin
}

// User is the domain model for everyone in the system; moderators and admins
// are users with an elevated role and a skill profile used for assignment.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Skills       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
