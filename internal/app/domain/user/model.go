package user

import "time"

// Role is the closed set of roles recognised by the workflow.
type Role string

const (
	RoleEmployee    Role = "employee"
	RoleBoardMember Role = "board_member"
	RoleAdmin       Role = "admin"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	return r == RoleEmployee || r == RoleBoardMember || r == RoleAdmin
}

// AssignableRoles are the roles an admin may grant to other users.
func AssignableRoles() []Role {
	return []Role{RoleEmployee, RoleBoardMember}
}

// User is an account that submits requests, votes on them, or administers the
// system depending on its role.
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
