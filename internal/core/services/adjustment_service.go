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

// AdjustmentService handles manual points corrections
type AdjustmentService struct {
	transactionRepo repositories.PointsTransactionRepository
	membershipRepo  repositories.MembershipRepository
	balanceService  *BalanceProjectionService
	tierService     *TierChangeService
	publisher       *EventPublisher
	locker          lock.Locker
}

// NewAdjustmentService creates a new adjustment service
func NewAdjustmentService(
	transactionRepo repositories.PointsTransactionRepository,
	membershipRepo repositories.MembershipRepository,
	balanceService *BalanceProjectionService,
	tierService *TierChangeService,
	publisher *EventPublisher,
	locker lock.Locker,
) *AdjustmentService {
	return &AdjustmentService{
		transactionRepo: transactionRepo,
		membershipRepo:  membershipRepo,
		balanceService:  balanceService,
		tierService:     tierService,
		publisher:       publisher,
		locker:          locker,
	}
}

// CreateAdjustmentInput represents create adjustment input
type CreateAdjustmentInput struct {
	MembershipID uint            `json:"membership_id" validate:"required"`
	PointsDelta  int64           `json:"points_delta" validate:"required"`
	ReasonCode   string          `json:"reason_code" validate:"required"`
	CreatedBy    string          `json:"created_by" validate:"required"`
	BranchID     *uint           `json:"branch_id,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	Metadata     domain.Metadata `json:"metadata,omitempty"`
}

// CreateAdjustment appends a manual ADJUSTMENT row to the ledger.
// A subtracting adjustment may never push the balance negative.
func (s *AdjustmentService) CreateAdjustment(ctx context.Context, input *CreateAdjustmentInput) (*domain.PointsTransaction, error) {
	// Manual adjustments need an accountable human actor
	if input.CreatedBy == "" || input.CreatedBy == domain.CreatedBySystem {
		return nil, domain.ErrSystemActor
	}
	if input.ReasonCode == "" {
		return nil, domain.ErrReasonCodeRequired
	}
	if input.PointsDelta == 0 {
		return nil, domain.ErrAdjustmentDeltaZero
	}

	membership, err := s.membershipRepo.GetByID(ctx, input.MembershipID)
	if err != nil {
		return nil, err
	}

	// The balance check and the ledger append form one critical section
	// per membership, otherwise two concurrent negative adjustments
	// could both pass the check. Released before tier evaluation, which
	// takes the same lock.
	release, err := s.locker.Acquire(ctx, membership.ID)
	if err != nil {
		return nil, err
	}

	saved, newBalance, err := s.appendAdjustment(ctx, membership, input)
	release()
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, TopicPointsEvents, EventAdjustmentCreated, membership.ID, map[string]interface{}{
		"transaction_id": saved.ID,
		"points_delta":   saved.PointsDelta,
		"reason_code":    saved.ReasonCode,
		"created_by":     saved.CreatedBy,
		"new_balance":    newBalance,
	})

	// Only added points can cross a tier threshold upward; subtracting
	// adjustments leave the next scheduled sweep to downgrade.
	// Re-evaluation is best-effort and never fails the correction itself
	if s.tierService != nil && input.PointsDelta > 0 {
		if _, err := s.tierService.EvaluateAndApplyTierChange(ctx, membership.ID); err != nil {
			if !errors.Is(err, domain.ErrTierPolicyMissing) {
				log.Printf("⚠️  Tier evaluation after adjustment failed for membership %d: %v", membership.ID, err)
			}
		}
	}

	return saved, nil
}

// appendAdjustment performs the balance guard, the ledger append and
// the projection sync under the caller-held membership lock.
func (s *AdjustmentService) appendAdjustment(ctx context.Context, membership *domain.CustomerMembership, input *CreateAdjustmentInput) (*domain.PointsTransaction, int64, error) {
	// Guard against the balance going negative before writing anything
	previousBalance, err := s.transactionRepo.CalculateBalance(ctx, membership.ID)
	if err != nil {
		return nil, 0, err
	}
	if input.PointsDelta < 0 && previousBalance+input.PointsDelta < 0 {
		return nil, 0, domain.ErrInsufficientBalance
	}

	key := fmt.Sprintf("ADJUSTMENT-%d-%s-%d", membership.ID, input.ReasonCode, time.Now().UnixMilli())
	tx, err := domain.NewAdjustment(membership.TenantID, membership.UserID, membership.ID,
		input.PointsDelta, key, input.CreatedBy, input.ReasonCode)
	if err != nil {
		return nil, 0, err
	}
	tx.BranchID = input.BranchID

	adjustmentType := "ADD"
	if input.PointsDelta < 0 {
		adjustmentType = "SUBTRACT"
	}
	tx.Metadata = domain.Metadata{
		"adjustmentType":  adjustmentType,
		"previousBalance": previousBalance,
	}
	if input.Notes != "" {
		tx.Metadata["notes"] = input.Notes
	}
	for k, v := range input.Metadata {
		tx.Metadata[k] = v
	}

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

// GetAdjustmentHistory lists the most recent adjustments for a
// membership, newest first, capped at 100.
func (s *AdjustmentService) GetAdjustmentHistory(ctx context.Context, membershipID uint) ([]*domain.PointsTransaction, error) {
	if _, err := s.membershipRepo.GetByID(ctx, membershipID); err != nil {
		return nil, err
	}
	return s.transactionRepo.ListByMembershipIDAndType(ctx, membershipID, domain.TxAdjustment, 100)
}
