package domain

import (
	"strings"
	"time"
)

// Role enumerates platform roles carried in tokens.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is the domain model for platform accounts.
type User struct {
	ID             string
	FirstName      string
	LastName       string
	Email          string
	PasswordHash   string
	Role           Role
	OrganizationID string
	Enabled        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastLogin      *time.Time
}

// FullName joins first and last name the way it is embedded in tokens.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
