package repositories

import (
	"context"
	"time"

	"loyaltyhub/internal/core/domain"
)

// PointsTransactionRepository defines ledger repository interface.
// The ledger is append-only: Save is the only write operation.
type PointsTransactionRepository interface {
	Save(ctx context.Context, tx *domain.PointsTransaction) (*domain.PointsTransaction, error)
	GetByID(ctx context.Context, id uint) (*domain.PointsTransaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.PointsTransaction, error)
	ListByMembershipID(ctx context.Context, membershipID uint, limit int) ([]*domain.PointsTransaction, error)
	ListByMembershipIDAndType(ctx context.Context, membershipID uint, txType domain.TransactionType, limit int) ([]*domain.PointsTransaction, error)
	ListByMembershipIDAndTypeAndRewardID(ctx context.Context, membershipID uint, txType domain.TransactionType, rewardID uint) ([]*domain.PointsTransaction, error)
	ListForTierEvaluation(ctx context.Context, membershipID uint, from, to time.Time) ([]*domain.PointsTransaction, error)
	ListReversalsOf(ctx context.Context, transactionID uint) ([]*domain.PointsTransaction, error)
	ListExpiring(ctx context.Context, tenantID uint, before time.Time) ([]*domain.PointsTransaction, error)
	CalculateBalance(ctx context.Context, membershipID uint) (int64, error)
	CalculateBalanceByProgram(ctx context.Context, membershipID, programID uint) (int64, error)
}

// MembershipRepository defines membership repository interface
type MembershipRepository interface {
	GetByID(ctx context.Context, id uint) (*domain.CustomerMembership, error)
	ListByTenantID(ctx context.Context, tenantID uint) ([]*domain.CustomerMembership, error)
	ListTenantIDs(ctx context.Context) ([]uint, error)
	Update(ctx context.Context, membership *domain.CustomerMembership) error
	UpdateBalanceFromLedger(ctx context.Context, membershipID uint, balance int64) error
}

// TierStatusRepository defines tier status repository interface
type TierStatusRepository interface {
	GetByMembershipID(ctx context.Context, membershipID uint) (*domain.TierStatus, error)
	Save(ctx context.Context, status *domain.TierStatus) error
	ListPendingEvaluation(ctx context.Context, now time.Time) ([]*domain.TierStatus, error)
	ListExpiredGracePeriods(ctx context.Context, now time.Time) ([]*domain.TierStatus, error)
}

// TierPolicyRepository defines tier policy repository interface
type TierPolicyRepository interface {
	GetActiveByTenantID(ctx context.Context, tenantID uint) (*domain.TierPolicy, error)
	GetByID(ctx context.Context, id uint) (*domain.TierPolicy, error)
	Save(ctx context.Context, policy *domain.TierPolicy) error
}

// CustomerTierRepository defines tier catalog repository interface
type CustomerTierRepository interface {
	GetByID(ctx context.Context, id uint) (*domain.CustomerTier, error)
	ListByTenantID(ctx context.Context, tenantID uint) ([]*domain.CustomerTier, error)
	FindByPoints(ctx context.Context, tenantID uint, points int64) (*domain.CustomerTier, error)
}

// StaffUserRepository defines staff user repository interface
type StaffUserRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.StaffUser, error)
	Create(ctx context.Context, user *domain.StaffUser) error
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}
