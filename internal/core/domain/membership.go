package domain

import "time"

// MembershipStatus represents membership lifecycle state
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
)

// CustomerMembership is the per-tenant relationship between a user and
// the loyalty program.
//
// Points is a PROJECTION computed from the points ledger. It is written
// only by the balance projection service through the repository's
// UpdateBalanceFromLedger; every other write path must leave it alone.
// TierID is written only by the tier change service.
type CustomerMembership struct {
	ID                   uint
	UserID               uint
	TenantID             uint
	RegistrationBranchID *uint
	Points               int64
	TierID               *uint
	TotalSpent           float64
	TotalVisits          int
	LastVisit            *time.Time
	JoinedDate           time.Time
	QRCode               string
	Status               MembershipStatus
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsActive returns true when the membership can earn and redeem
func (m *CustomerMembership) IsActive() bool {
	return m.Status == MembershipActive
}
