package domain

import "time"

// Role represents a staff user role
type Role string

const (
	RoleOfficer Role = "OFFICER"
	RoleAdmin   Role = "ADMIN"
)

// StaffUser is a back-office actor. Staff usernames become the
// CreatedBy value on manually created ledger rows.
type StaffUser struct {
	ID        uint
	TenantID  uint
	Username  string
	Password  string // bcrypt hash
	Role      Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
