package domain

import "time"

// EvaluationWindow defines the time range point metrics are computed over
type EvaluationWindow string

const (
	WindowMonthly   EvaluationWindow = "MONTHLY"
	WindowQuarterly EvaluationWindow = "QUARTERLY"
	WindowRolling30 EvaluationWindow = "ROLLING_30"
	WindowRolling90 EvaluationWindow = "ROLLING_90"
)

// EvaluationType distinguishes calendar-fixed from rolling windows
type EvaluationType string

const (
	EvaluationFixed   EvaluationType = "FIXED"
	EvaluationRolling EvaluationType = "ROLLING"
)

// DowngradeStrategy controls what happens when a member stops qualifying
type DowngradeStrategy string

const (
	DowngradeImmediate   DowngradeStrategy = "IMMEDIATE"
	DowngradeGracePeriod DowngradeStrategy = "GRACE_PERIOD"
	DowngradeNever       DowngradeStrategy = "NEVER"
)

// PolicyStatus represents tier policy lifecycle state
type PolicyStatus string

const (
	PolicyActive   PolicyStatus = "active"
	PolicyInactive PolicyStatus = "inactive"
	PolicyDraft    PolicyStatus = "draft"
)

// TierPolicy is a tenant's configuration for automatic tier evaluation.
// At most one active policy exists per tenant; the repository enforces it.
type TierPolicy struct {
	ID               uint
	TenantID         uint
	EvaluationWindow EvaluationWindow
	EvaluationType   EvaluationType
	Thresholds       map[uint]int64 // tierID -> minimum in-window points
	GracePeriodDays  int
	MinTierDuration  int // days a member must hold a tier before the next upgrade
	DowngradeStrategy DowngradeStrategy
	Status           PolicyStatus
	Description      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsActive returns true when the policy drives evaluations
func (p *TierPolicy) IsActive() bool {
	return p.Status == PolicyActive
}

// AllowsDowngrade returns true unless the strategy is NEVER
func (p *TierPolicy) AllowsDowngrade() bool {
	return p.DowngradeStrategy != DowngradeNever
}

// UsesGracePeriod returns true when downgrades are deferred
func (p *TierPolicy) UsesGracePeriod() bool {
	return p.DowngradeStrategy == DowngradeGracePeriod && p.GracePeriodDays > 0
}

// MinPointsForTier returns the threshold for a tier, or false when the
// tier is not part of this policy.
func (p *TierPolicy) MinPointsForTier(tierID uint) (int64, bool) {
	pts, ok := p.Thresholds[tierID]
	return pts, ok
}

// TiersOrderedByPoints returns the policy's tier ids sorted by threshold
// ascending.
func (p *TierPolicy) TiersOrderedByPoints() []uint {
	ids := make([]uint, 0, len(p.Thresholds))
	for id := range p.Thresholds {
		ids = append(ids, id)
	}
	// insertion sort; threshold maps are tiny
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && p.Thresholds[ids[j]] < p.Thresholds[ids[j-1]]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

// TierStatus tracks a membership's standing in the tier state machine.
// Absent until a policy-driven evaluation first runs for the membership.
type TierStatus struct {
	MembershipID  uint
	CurrentTierID *uint
	Since         time.Time  // when the current tier became effective
	GraceUntil    *time.Time // set while a downgrade is deferred
	NextEvalAt    *time.Time // when the next automatic evaluation is due
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewTierStatus creates the initial status record for a membership.
// GraceUntil, when given, must not precede since.
func NewTierStatus(membershipID uint, tierID *uint, since time.Time, graceUntil, nextEvalAt *time.Time) (*TierStatus, error) {
	if graceUntil != nil && graceUntil.Before(since) {
		return nil, ErrGraceBeforeSince
	}
	return &TierStatus{
		MembershipID:  membershipID,
		CurrentTierID: tierID,
		Since:         since,
		GraceUntil:    graceUntil,
		NextEvalAt:    nextEvalAt,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}, nil
}

// IsInGracePeriod returns true while GraceUntil lies in the future
func (s *TierStatus) IsInGracePeriod() bool {
	return s.GraceUntil != nil && s.GraceUntil.After(time.Now())
}

// DaysInCurrentTier returns whole days since the tier became effective
func (s *TierStatus) DaysInCurrentTier() int {
	return int(time.Since(s.Since).Hours() / 24)
}

// Upgrade moves the status to a new, higher tier. Any pending grace
// period is cleared and Since restarts.
func (s *TierStatus) Upgrade(tierID uint, nextEvalAt *time.Time) *TierStatus {
	id := tierID
	return &TierStatus{
		MembershipID:  s.MembershipID,
		CurrentTierID: &id,
		Since:         time.Now(),
		GraceUntil:    nil,
		NextEvalAt:    nextEvalAt,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     time.Now(),
	}
}

// Downgrade moves the status to a lower tier (or no tier), clearing any
// grace period and restarting Since.
func (s *TierStatus) Downgrade(tierID *uint, nextEvalAt *time.Time) *TierStatus {
	return &TierStatus{
		MembershipID:  s.MembershipID,
		CurrentTierID: tierID,
		Since:         time.Now(),
		GraceUntil:    nil,
		NextEvalAt:    nextEvalAt,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     time.Now(),
	}
}

// StartGracePeriod defers a downgrade until graceUntil and schedules the
// re-evaluation for exactly that moment. Tier and Since are untouched.
func (s *TierStatus) StartGracePeriod(graceUntil time.Time) *TierStatus {
	g := graceUntil
	return &TierStatus{
		MembershipID:  s.MembershipID,
		CurrentTierID: s.CurrentTierID,
		Since:         s.Since,
		GraceUntil:    &g,
		NextEvalAt:    &g,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     time.Now(),
	}
}

// WithNextEvalAt refreshes only the next evaluation due date
func (s *TierStatus) WithNextEvalAt(nextEvalAt *time.Time) *TierStatus {
	return &TierStatus{
		MembershipID:  s.MembershipID,
		CurrentTierID: s.CurrentTierID,
		Since:         s.Since,
		GraceUntil:    s.GraceUntil,
		NextEvalAt:    nextEvalAt,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     time.Now(),
	}
}

// TierCatalogStatus represents catalog entry state
type TierCatalogStatus string

const (
	TierActive   TierCatalogStatus = "active"
	TierInactive TierCatalogStatus = "inactive"
)

// CustomerTier is a tenant-defined loyalty level. The catalog doubles as
// the fallback ranking source when no tier policy is configured.
type CustomerTier struct {
	ID        uint
	TenantID  uint
	Name      string
	MinPoints int64
	MaxPoints *int64 // nil = unbounded top tier
	Priority  int    // higher = better
	Status    TierCatalogStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive returns true when the tier can be assigned
func (t *CustomerTier) IsActive() bool {
	return t.Status == TierActive
}

// ContainsPoints reports whether a balance falls inside this tier's range
func (t *CustomerTier) ContainsPoints(points int64) bool {
	if points < t.MinPoints {
		return false
	}
	return t.MaxPoints == nil || points <= *t.MaxPoints
}
