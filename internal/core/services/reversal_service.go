package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loyaltyhub/internal/adapters/persistence/repositories"
	"loyaltyhub/internal/core/domain"
)

// ReversalService undoes ledger transactions by appending compensating
// REVERSAL rows. The original row is never touched.
type ReversalService struct {
	transactionRepo repositories.PointsTransactionRepository
	membershipRepo  repositories.MembershipRepository
	balanceService  *BalanceProjectionService
	tierService     *TierChangeService
	publisher       *EventPublisher
}

// NewReversalService creates a new reversal service
func NewReversalService(
	transactionRepo repositories.PointsTransactionRepository,
	membershipRepo repositories.MembershipRepository,
	balanceService *BalanceProjectionService,
	tierService *TierChangeService,
	publisher *EventPublisher,
) *ReversalService {
	return &ReversalService{
		transactionRepo: transactionRepo,
		membershipRepo:  membershipRepo,
		balanceService:  balanceService,
		tierService:     tierService,
		publisher:       publisher,
	}
}

// CreateReversalInput represents create reversal input
type CreateReversalInput struct {
	TransactionID uint            `json:"transaction_id" validate:"required"`
	ReasonCode    string          `json:"reason_code" validate:"required"`
	CreatedBy     string          `json:"created_by" validate:"required"`
	Metadata      domain.Metadata `json:"metadata,omitempty"`
}

// ReversalChain is an original transaction with its reversals
type ReversalChain struct {
	Original  *domain.PointsTransaction   `json:"original"`
	Reversals []*domain.PointsTransaction `json:"reversals"`
}

// CreateReversal appends a REVERSAL row that exactly negates the
// original transaction. Only EARNING and REDEEM rows are reversible,
// and each at most once.
func (s *ReversalService) CreateReversal(ctx context.Context, input *CreateReversalInput) (*domain.PointsTransaction, error) {
	if input.ReasonCode == "" {
		return nil, domain.ErrReasonCodeRequired
	}

	original, err := s.transactionRepo.GetByID(ctx, input.TransactionID)
	if err != nil {
		return nil, err
	}

	if !original.IsReversible() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotReversible, original.Type)
	}

	// Single-reversal rule: a row already compensated stays compensated
	existing, err := s.transactionRepo.ListReversalsOf(ctx, original.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, domain.ErrAlreadyReversed
	}

	if _, err := s.membershipRepo.GetByID(ctx, original.MembershipID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("REVERSAL-%d-%d", original.ID, time.Now().UnixMilli())
	reversal, err := domain.NewReversal(original, key, input.CreatedBy, input.ReasonCode)
	if err != nil {
		return nil, err
	}
	reversal.Metadata = domain.Metadata{
		"originalPointsDelta":     original.PointsDelta,
		"reversedPointsDelta":     reversal.PointsDelta,
		"originalTransactionType": string(original.Type),
		"originalCreatedAt":       original.CreatedAt.UTC().Format(time.RFC3339),
	}
	for k, v := range input.Metadata {
		reversal.Metadata[k] = v
	}

	saved, err := s.transactionRepo.Save(ctx, reversal)
	if err != nil {
		return nil, err
	}

	newBalance, err := s.balanceService.SyncAfterTransaction(ctx, original.MembershipID)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, TopicPointsEvents, EventReversalCreated, original.MembershipID, map[string]interface{}{
		"transaction_id": saved.ID,
		"reverses":       original.ID,
		"points_delta":   saved.PointsDelta,
		"reason_code":    saved.ReasonCode,
		"new_balance":    newBalance,
	})

	// Reversing an earning can drop the member below a threshold, so
	// the tier re-evaluation is part of the operation here and its
	// failure surfaces to the caller; the ledger row stays committed
	if s.tierService != nil && original.Type == domain.TxEarning && original.PointsDelta > 0 {
		if _, err := s.tierService.EvaluateAndApplyTierChange(ctx, original.MembershipID); err != nil {
			if !errors.Is(err, domain.ErrTierPolicyMissing) {
				return nil, err
			}
		}
	}

	return saved, nil
}

// IsReversed reports whether a transaction already has a reversal
func (s *ReversalService) IsReversed(ctx context.Context, transactionID uint) (bool, error) {
	reversals, err := s.transactionRepo.ListReversalsOf(ctx, transactionID)
	if err != nil {
		return false, err
	}
	return len(reversals) > 0, nil
}

// GetReversalChain returns the original transaction together with any
// reversals pointing at it.
func (s *ReversalService) GetReversalChain(ctx context.Context, transactionID uint) (*ReversalChain, error) {
	original, err := s.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	reversals, err := s.transactionRepo.ListReversalsOf(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return &ReversalChain{Original: original, Reversals: reversals}, nil
}
