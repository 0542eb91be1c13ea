package domain

import "time"

// TransactionType represents the kind of ledger entry
type TransactionType string

const (
	TxEarning    TransactionType = "EARNING"
	TxRedeem     TransactionType = "REDEEM"
	TxAdjustment TransactionType = "ADJUSTMENT"
	TxReversal   TransactionType = "REVERSAL"
	TxExpiration TransactionType = "EXPIRATION"
)

// CreatedBySystem marks ledger rows written by background jobs rather
// than a human actor. Manual adjustments must never carry it.
const CreatedBySystem = "SYSTEM"

// Metadata is an opaque key/value bag stored alongside a ledger row.
// It exists for auditing only and is never queried.
type Metadata map[string]interface{}

// PointsTransaction is a single row of the points ledger.
// The ledger is append-only: once persisted a row is never updated or
// deleted, and PointsDelta/Type/ReversalOfTransactionID never change.
// Corrections are made by appending ADJUSTMENT or REVERSAL rows.
type PointsTransaction struct {
	ID                      uint
	TenantID                uint
	CustomerID              uint
	MembershipID            uint
	ProgramID               *uint
	RewardRuleID            *uint
	RewardID                *uint // set only on REDEEM rows
	BranchID                *uint
	Type                    TransactionType
	PointsDelta             int64 // positive = earn, negative = spend/expire/reverse-out
	IdempotencyKey          string
	SourceEventID           *string
	CorrelationID           *string
	CreatedBy               string
	ReasonCode              string
	Metadata                Metadata
	ReversalOfTransactionID *uint // set only on REVERSAL rows
	ExpiresAt               *time.Time // set only on EARNING rows
	CreatedAt               time.Time
}

// IsReversal returns true for REVERSAL rows
func (t *PointsTransaction) IsReversal() bool {
	return t.Type == TxReversal
}

// IsReversible reports whether a row of this type may be reversed.
// Reversals, expirations and adjustments are final; adjustments are
// corrected with another adjustment.
func (t *PointsTransaction) IsReversible() bool {
	return t.Type == TxEarning || t.Type == TxRedeem
}

// NewEarning builds an EARNING ledger row. Delta must be positive.
func NewEarning(tenantID, customerID, membershipID uint, pointsDelta int64, idempotencyKey string, expiresAt *time.Time) (*PointsTransaction, error) {
	if pointsDelta <= 0 {
		return nil, ErrEarningDeltaNotPositive
	}
	return &PointsTransaction{
		TenantID:       tenantID,
		CustomerID:     customerID,
		MembershipID:   membershipID,
		Type:           TxEarning,
		PointsDelta:    pointsDelta,
		IdempotencyKey: idempotencyKey,
		ExpiresAt:      expiresAt,
		CreatedAt:      time.Now(),
	}, nil
}

// NewRedeem builds a REDEEM ledger row. Delta must be negative and a
// reward must be referenced.
func NewRedeem(tenantID, customerID, membershipID uint, pointsDelta int64, idempotencyKey string, rewardID uint) (*PointsTransaction, error) {
	if pointsDelta >= 0 {
		return nil, ErrRedeemDeltaNotNegative
	}
	if rewardID == 0 {
		return nil, ErrRedeemRewardRequired
	}
	rid := rewardID
	return &PointsTransaction{
		TenantID:       tenantID,
		CustomerID:     customerID,
		MembershipID:   membershipID,
		Type:           TxRedeem,
		PointsDelta:    pointsDelta,
		IdempotencyKey: idempotencyKey,
		RewardID:       &rid,
		CreatedAt:      time.Now(),
	}, nil
}

// NewAdjustment builds an ADJUSTMENT ledger row. Delta may be either
// sign but never zero, and a reason code is mandatory.
func NewAdjustment(tenantID, customerID, membershipID uint, pointsDelta int64, idempotencyKey, createdBy, reasonCode string) (*PointsTransaction, error) {
	if pointsDelta == 0 {
		return nil, ErrAdjustmentDeltaZero
	}
	if reasonCode == "" {
		return nil, ErrReasonCodeRequired
	}
	return &PointsTransaction{
		TenantID:       tenantID,
		CustomerID:     customerID,
		MembershipID:   membershipID,
		Type:           TxAdjustment,
		PointsDelta:    pointsDelta,
		IdempotencyKey: idempotencyKey,
		CreatedBy:      createdBy,
		ReasonCode:     reasonCode,
		CreatedAt:      time.Now(),
	}, nil
}

// NewReversal builds a REVERSAL row that exactly negates the original.
// Reversals never expire.
func NewReversal(original *PointsTransaction, idempotencyKey, createdBy, reasonCode string) (*PointsTransaction, error) {
	if !original.IsReversible() {
		return nil, ErrNotReversible
	}
	origID := original.ID
	return &PointsTransaction{
		TenantID:                original.TenantID,
		CustomerID:              original.CustomerID,
		MembershipID:            original.MembershipID,
		ProgramID:               original.ProgramID,
		RewardRuleID:            original.RewardRuleID,
		Type:                    TxReversal,
		PointsDelta:             -original.PointsDelta,
		IdempotencyKey:          idempotencyKey,
		SourceEventID:           original.SourceEventID,
		CorrelationID:           original.CorrelationID,
		CreatedBy:               createdBy,
		ReasonCode:              reasonCode,
		ReversalOfTransactionID: &origID,
		CreatedAt:               time.Now(),
	}, nil
}

// NewExpiration builds an EXPIRATION ledger row. Delta must be negative.
func NewExpiration(tenantID, customerID, membershipID uint, pointsDelta int64, idempotencyKey string) (*PointsTransaction, error) {
	if pointsDelta >= 0 {
		return nil, ErrExpirationDeltaNotNegative
	}
	return &PointsTransaction{
		TenantID:       tenantID,
		CustomerID:     customerID,
		MembershipID:   membershipID,
		Type:           TxExpiration,
		PointsDelta:    pointsDelta,
		IdempotencyKey: idempotencyKey,
		CreatedBy:      CreatedBySystem,
		ReasonCode:     "POINTS_EXPIRED",
		CreatedAt:      time.Now(),
	}, nil
}
