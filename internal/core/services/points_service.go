package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"loyaltyhub/internal/adapters/persistence/repositories"
	"loyaltyhub/internal/core/domain"
	"loyaltyhub/internal/infrastructure/lock"
)

// PointsService handles the earning and redemption write paths. Both
// append ledger rows and refresh the balance projection; the cached
// balance is never written directly.
type PointsService struct {
	transactionRepo repositories.PointsTransactionRepository
	membershipRepo  repositories.MembershipRepository
	balanceService  *BalanceProjectionService
	tierService     *TierChangeService
	publisher       *EventPublisher
	locker          lock.Locker
}

// NewPointsService creates a new points service
func NewPointsService(
	transactionRepo repositories.PointsTransactionRepository,
	membershipRepo repositories.MembershipRepository,
	balanceService *BalanceProjectionService,
	tierService *TierChangeService,
	publisher *EventPublisher,
	locker lock.Locker,
) *PointsService {
	return &PointsService{
		transactionRepo: transactionRepo,
		membershipRepo:  membershipRepo,
		balanceService:  balanceService,
		tierService:     tierService,
		publisher:       publisher,
		locker:          locker,
	}
}

// EarnPointsInput represents earn points input
type EarnPointsInput struct {
	MembershipID   uint            `json:"membership_id" validate:"required"`
	Points         int64           `json:"points" validate:"required,gt=0"`
	Amount         float64         `json:"amount,omitempty"`
	ProgramID      *uint           `json:"program_id,omitempty"`
	RewardRuleID   *uint           `json:"reward_rule_id,omitempty"`
	BranchID       *uint           `json:"branch_id,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	SourceEventID  *string         `json:"source_event_id,omitempty"`
	ExpiresInDays  int             `json:"expires_in_days,omitempty"`
	Metadata       domain.Metadata `json:"metadata,omitempty"`
}

// EarnPoints appends an EARNING row and syncs the balance
func (s *PointsService) EarnPoints(ctx context.Context, input *EarnPointsInput) (*domain.PointsTransaction, error) {
	membership, err := s.membershipRepo.GetByID(ctx, input.MembershipID)
	if err != nil {
		return nil, err
	}
	if !membership.IsActive() {
		return nil, domain.ErrMembershipInactive
	}

	key := input.IdempotencyKey
	if key == "" {
		key = fmt.Sprintf("EARNING-%d-%d", membership.ID, time.Now().UnixNano())
	}

	var expiresAt *time.Time
	if input.ExpiresInDays > 0 {
		e := time.Now().AddDate(0, 0, input.ExpiresInDays)
		expiresAt = &e
	}

	tx, err := domain.NewEarning(membership.TenantID, membership.UserID, membership.ID, input.Points, key, expiresAt)
	if err != nil {
		return nil, err
	}
	tx.ProgramID = input.ProgramID
	tx.RewardRuleID = input.RewardRuleID
	tx.BranchID = input.BranchID
	tx.SourceEventID = input.SourceEventID
	tx.Metadata = domain.Metadata{}
	for k, v := range input.Metadata {
		tx.Metadata[k] = v
	}
	if input.Amount > 0 {
		tx.Metadata["amount"] = input.Amount
	}

	saved, err := s.transactionRepo.Save(ctx, tx)
	if err != nil {
		return nil, err
	}

	newBalance, err := s.balanceService.SyncAfterTransaction(ctx, membership.ID)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, TopicPointsEvents, EventPointsEarned, membership.ID, map[string]interface{}{
		"transaction_id": saved.ID,
		"points":         saved.PointsDelta,
		"new_balance":    newBalance,
	})

	// Earnings can cross a threshold; evaluation is best-effort here
	if s.tierService != nil {
		if _, err := s.tierService.EvaluateAndApplyTierChange(ctx, membership.ID); err != nil {
			if !errors.Is(err, domain.ErrTierPolicyMissing) {
				log.Printf("⚠️  Tier evaluation after earning failed for membership %d: %v", membership.ID, err)
			}
		}
	}

	return saved, nil
}

// RedeemPointsInput represents redeem points input
type RedeemPointsInput struct {
	MembershipID   uint    `json:"membership_id" validate:"required"`
	Points         int64   `json:"points" validate:"required,gt=0"`
	RewardID       uint    `json:"reward_id" validate:"required"`
	BranchID       *uint   `json:"branch_id,omitempty"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
	CorrelationID  *string `json:"correlation_id,omitempty"`
}

// RedeemPoints appends a REDEEM row after verifying the balance covers
// the redemption. Check and append run under the membership lock.
func (s *PointsService) RedeemPoints(ctx context.Context, input *RedeemPointsInput) (*domain.PointsTransaction, error) {
	membership, err := s.membershipRepo.GetByID(ctx, input.MembershipID)
	if err != nil {
		return nil, err
	}
	if !membership.IsActive() {
		return nil, domain.ErrMembershipInactive
	}
	if input.Points <= 0 {
		return nil, domain.ErrRedeemDeltaNotNegative
	}

	release, err := s.locker.Acquire(ctx, membership.ID)
	if err != nil {
		return nil, err
	}

	saved, newBalance, err := s.appendRedemption(ctx, membership, input)
	release()
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, TopicPointsEvents, EventPointsRedeemed, membership.ID, map[string]interface{}{
		"transaction_id": saved.ID,
		"points":         -saved.PointsDelta,
		"reward_id":      input.RewardID,
		"new_balance":    newBalance,
	})

	return saved, nil
}

func (s *PointsService) appendRedemption(ctx context.Context, membership *domain.CustomerMembership, input *RedeemPointsInput) (*domain.PointsTransaction, int64, error) {
	balance, err := s.transactionRepo.CalculateBalance(ctx, membership.ID)
	if err != nil {
		return nil, 0, err
	}
	if balance < input.Points {
		return nil, 0, domain.ErrInsufficientBalance
	}

	key := input.IdempotencyKey
	if key == "" {
		key = fmt.Sprintf("REDEEM-%d-%d-%d", membership.ID, input.RewardID, time.Now().UnixNano())
	}

	tx, err := domain.NewRedeem(membership.TenantID, membership.UserID, membership.ID, -input.Points, key, input.RewardID)
	if err != nil {
		return nil, 0, err
	}
	tx.BranchID = input.BranchID
	tx.CorrelationID = input.CorrelationID

	saved, err := s.transactionRepo.Save(ctx, tx)
	if err != nil {
		return nil, 0, err
	}

	newBalance, err := s.balanceService.SyncAfterTransaction(ctx, membership.ID)
	if err != nil {
		return nil, 0, err
	}
	return saved, newBalance, nil
}

// GetMembership returns a membership with its projected balance
func (s *PointsService) GetMembership(ctx context.Context, membershipID uint) (*domain.CustomerMembership, error) {
	return s.membershipRepo.GetByID(ctx, membershipID)
}

// GetTransactionHistory lists a membership's ledger rows, newest first
func (s *PointsService) GetTransactionHistory(ctx context.Context, membershipID uint, limit int) ([]*domain.PointsTransaction, error) {
	if _, err := s.membershipRepo.GetByID(ctx, membershipID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.transactionRepo.ListByMembershipID(ctx, membershipID, limit)
}

// GetRewardRedemptions lists REDEEM rows for one reward
func (s *PointsService) GetRewardRedemptions(ctx context.Context, membershipID, rewardID uint) ([]*domain.PointsTransaction, error) {
	return s.transactionRepo.ListByMembershipIDAndTypeAndRewardID(ctx, membershipID, domain.TxRedeem, rewardID)
}
