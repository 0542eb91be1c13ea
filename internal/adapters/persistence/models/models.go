package models

import (
	"encoding/json"
	"time"

	"loyaltyhub/internal/core/domain"

	"gorm.io/gorm"
)

// ============================================================
// Ledger
// ============================================================

// PointsTransaction represents the points_transactions ledger table.
// Rows are append-only: the repository never issues UPDATE or DELETE
// against this table.
type PointsTransaction struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	TenantID                uint       `gorm:"index;not null" json:"tenant_id"`
	CustomerID              uint       `gorm:"index;not null" json:"customer_id"`
	MembershipID            uint       `gorm:"index;not null" json:"membership_id"`
	ProgramID               *uint      `gorm:"index" json:"program_id"`
	RewardRuleID            *uint      `json:"reward_rule_id"`
	RewardID                *uint      `json:"reward_id"`
	BranchID                *uint      `json:"branch_id"`
	Type                    string     `gorm:"size:20;index;not null" json:"type"`
	PointsDelta             int64      `gorm:"not null" json:"points_delta"`
	IdempotencyKey          string     `gorm:"size:191;uniqueIndex;not null" json:"idempotency_key"`
	SourceEventID           *string    `gorm:"size:64;index" json:"source_event_id"`
	CorrelationID           *string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedBy               string     `gorm:"size:100" json:"created_by"`
	ReasonCode              string     `gorm:"size:50" json:"reason_code"`
	Metadata                string     `gorm:"type:text" json:"-"`
	ReversalOfTransactionID *uint      `gorm:"index" json:"reversal_of_transaction_id"`
	ExpiresAt               *time.Time `gorm:"index" json:"expires_at"`
	CreatedAt               time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PointsTransaction) TableName() string {
	return "points_transactions"
}

// ToDomain maps the stored row to the domain record
func (m *PointsTransaction) ToDomain() *domain.PointsTransaction {
	var meta domain.Metadata
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &meta)
	}
	return &domain.PointsTransaction{
		ID:                      m.ID,
		TenantID:                m.TenantID,
		CustomerID:              m.CustomerID,
		MembershipID:            m.MembershipID,
		ProgramID:               m.ProgramID,
		RewardRuleID:            m.RewardRuleID,
		RewardID:                m.RewardID,
		BranchID:                m.BranchID,
		Type:                    domain.TransactionType(m.Type),
		PointsDelta:             m.PointsDelta,
		IdempotencyKey:          m.IdempotencyKey,
		SourceEventID:           m.SourceEventID,
		CorrelationID:           m.CorrelationID,
		CreatedBy:               m.CreatedBy,
		ReasonCode:              m.ReasonCode,
		Metadata:                meta,
		ReversalOfTransactionID: m.ReversalOfTransactionID,
		ExpiresAt:               m.ExpiresAt,
		CreatedAt:               m.CreatedAt,
	}
}

// TransactionFromDomain maps a domain record to its stored shape
func TransactionFromDomain(t *domain.PointsTransaction) *PointsTransaction {
	meta := ""
	if len(t.Metadata) > 0 {
		if b, err := json.Marshal(t.Metadata); err == nil {
			meta = string(b)
		}
	}
	return &PointsTransaction{
		ID:                      t.ID,
		TenantID:                t.TenantID,
		CustomerID:              t.CustomerID,
		MembershipID:            t.MembershipID,
		ProgramID:               t.ProgramID,
		RewardRuleID:            t.RewardRuleID,
		RewardID:                t.RewardID,
		BranchID:                t.BranchID,
		Type:                    string(t.Type),
		PointsDelta:             t.PointsDelta,
		IdempotencyKey:          t.IdempotencyKey,
		SourceEventID:           t.SourceEventID,
		CorrelationID:           t.CorrelationID,
		CreatedBy:               t.CreatedBy,
		ReasonCode:              t.ReasonCode,
		Metadata:                meta,
		ReversalOfTransactionID: t.ReversalOfTransactionID,
		ExpiresAt:               t.ExpiresAt,
		CreatedAt:               t.CreatedAt,
	}
}

// ============================================================
// Membership projection
// ============================================================

// CustomerMembership represents the customer_memberships table.
// Points is a projection over the ledger; see the repository for the
// dedicated balance-only write path.
type CustomerMembership struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               uint       `gorm:"index;not null" json:"user_id"`
	TenantID             uint       `gorm:"index;not null" json:"tenant_id"`
	RegistrationBranchID *uint      `json:"registration_branch_id"`
	Points               int64      `gorm:"not null;default:0" json:"points"`
	TierID               *uint      `gorm:"index" json:"tier_id"`
	TotalSpent           float64    `gorm:"type:decimal(12,2);not null;default:0" json:"total_spent"`
	TotalVisits          int        `gorm:"not null;default:0" json:"total_visits"`
	LastVisit            *time.Time `json:"last_visit"`
	JoinedDate           time.Time  `gorm:"not null" json:"joined_date"`
	QRCode               string     `gorm:"size:64;uniqueIndex" json:"qr_code"`
	Status               string     `gorm:"size:20;default:'active'" json:"status"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CustomerMembership) TableName() string {
	return "customer_memberships"
}

func (m *CustomerMembership) ToDomain() *domain.CustomerMembership {
	return &domain.CustomerMembership{
		ID:                   m.ID,
		UserID:               m.UserID,
		TenantID:             m.TenantID,
		RegistrationBranchID: m.RegistrationBranchID,
		Points:               m.Points,
		TierID:               m.TierID,
		TotalSpent:           m.TotalSpent,
		TotalVisits:          m.TotalVisits,
		LastVisit:            m.LastVisit,
		JoinedDate:           m.JoinedDate,
		QRCode:               m.QRCode,
		Status:               domain.MembershipStatus(m.Status),
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

func MembershipFromDomain(m *domain.CustomerMembership) *CustomerMembership {
	return &CustomerMembership{
		ID:                   m.ID,
		UserID:               m.UserID,
		TenantID:             m.TenantID,
		RegistrationBranchID: m.RegistrationBranchID,
		Points:               m.Points,
		TierID:               m.TierID,
		TotalSpent:           m.TotalSpent,
		TotalVisits:          m.TotalVisits,
		LastVisit:            m.LastVisit,
		JoinedDate:           m.JoinedDate,
		QRCode:               m.QRCode,
		Status:               string(m.Status),
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// ============================================================
// Tier tables
// ============================================================

// TierStatus represents the tier_statuses table (one row per membership)
type TierStatus struct {
	MembershipID  uint       `gorm:"primaryKey" json:"membership_id"`
	CurrentTierID *uint      `gorm:"index" json:"current_tier_id"`
	Since         time.Time  `gorm:"not null" json:"since"`
	GraceUntil    *time.Time `gorm:"index" json:"grace_until"`
	NextEvalAt    *time.Time `gorm:"index" json:"next_eval_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TierStatus) TableName() string {
	return "tier_statuses"
}

func (m *TierStatus) ToDomain() *domain.TierStatus {
	return &domain.TierStatus{
		MembershipID:  m.MembershipID,
		CurrentTierID: m.CurrentTierID,
		Since:         m.Since,
		GraceUntil:    m.GraceUntil,
		NextEvalAt:    m.NextEvalAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func TierStatusFromDomain(s *domain.TierStatus) *TierStatus {
	return &TierStatus{
		MembershipID:  s.MembershipID,
		CurrentTierID: s.CurrentTierID,
		Since:         s.Since,
		GraceUntil:    s.GraceUntil,
		NextEvalAt:    s.NextEvalAt,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// TierPolicy represents the tier_policies table. Thresholds are stored
// as a JSON object of tierID -> minimum points.
type TierPolicy struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	TenantID          uint           `gorm:"index;not null" json:"tenant_id"`
	EvaluationWindow  string         `gorm:"size:20;not null" json:"evaluation_window"`
	EvaluationType    string         `gorm:"size:20;not null" json:"evaluation_type"`
	Thresholds        string         `gorm:"type:text;not null" json:"-"`
	GracePeriodDays   int            `gorm:"not null;default:30" json:"grace_period_days"`
	MinTierDuration   int            `gorm:"not null;default:0" json:"min_tier_duration"`
	DowngradeStrategy string         `gorm:"size:20;not null;default:'GRACE_PERIOD'" json:"downgrade_strategy"`
	Status            string         `gorm:"size:20;index;not null;default:'draft'" json:"status"`
	Description       string         `gorm:"type:text" json:"description"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

func (TierPolicy) TableName() string {
	return "tier_policies"
}

func (m *TierPolicy) ToDomain() *domain.TierPolicy {
	thresholds := map[uint]int64{}
	if m.Thresholds != "" {
		_ = json.Unmarshal([]byte(m.Thresholds), &thresholds)
	}
	return &domain.TierPolicy{
		ID:                m.ID,
		TenantID:          m.TenantID,
		EvaluationWindow:  domain.EvaluationWindow(m.EvaluationWindow),
		EvaluationType:    domain.EvaluationType(m.EvaluationType),
		Thresholds:        thresholds,
		GracePeriodDays:   m.GracePeriodDays,
		MinTierDuration:   m.MinTierDuration,
		DowngradeStrategy: domain.DowngradeStrategy(m.DowngradeStrategy),
		Status:            domain.PolicyStatus(m.Status),
		Description:       m.Description,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func TierPolicyFromDomain(p *domain.TierPolicy) *TierPolicy {
	thresholds := "{}"
	if b, err := json.Marshal(p.Thresholds); err == nil {
		thresholds = string(b)
	}
	return &TierPolicy{
		ID:                p.ID,
		TenantID:          p.TenantID,
		EvaluationWindow:  string(p.EvaluationWindow),
		EvaluationType:    string(p.EvaluationType),
		Thresholds:        thresholds,
		GracePeriodDays:   p.GracePeriodDays,
		MinTierDuration:   p.MinTierDuration,
		DowngradeStrategy: string(p.DowngradeStrategy),
		Status:            string(p.Status),
		Description:       p.Description,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// CustomerTier represents the customer_tiers catalog table
type CustomerTier struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	TenantID  uint           `gorm:"index;not null" json:"tenant_id"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	MinPoints int64          `gorm:"not null" json:"min_points"`
	MaxPoints *int64         `json:"max_points"`
	Priority  int            `gorm:"not null" json:"priority"`
	Status    string         `gorm:"size:20;index;default:'active'" json:"status"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (CustomerTier) TableName() string {
	return "customer_tiers"
}

func (m *CustomerTier) ToDomain() *domain.CustomerTier {
	return &domain.CustomerTier{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Name:      m.Name,
		MinPoints: m.MinPoints,
		MaxPoints: m.MaxPoints,
		Priority:  m.Priority,
		Status:    domain.TierCatalogStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ============================================================
// Staff users
// ============================================================

// StaffUser represents the staff_users table
type StaffUser struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	TenantID  uint           `gorm:"index;not null" json:"tenant_id"`
	Username  string         `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	Role      string         `gorm:"size:20;default:'OFFICER'" json:"role"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (StaffUser) TableName() string {
	return "staff_users"
}

func (m *StaffUser) ToDomain() *domain.StaffUser {
	return &domain.StaffUser{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Username:  m.Username,
		Password:  m.Password,
		Role:      domain.Role(m.Role),
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ============================================================
// Outbox
// ============================================================

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxEvent represents the outbox_events table. Domain events are
// written here in the same flow that commits the ledger row and drained
// to Kafka by the outbox sender job.
type OutboxEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MessageKey string    `gorm:"size:64;not null" json:"message_key"`
	Topic      string    `gorm:"size:64;not null" json:"topic"`
	EventType  string    `gorm:"size:64;not null" json:"event_type"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"size:20;index;not null;default:'PENDING'" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// AutoMigrate creates/updates all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&PointsTransaction{},
		&CustomerMembership{},
		&TierStatus{},
		&TierPolicy{},
		&CustomerTier{},
		&StaffUser{},
		&OutboxEvent{},
	)
}
