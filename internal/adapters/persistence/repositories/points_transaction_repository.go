package repositories

import (
	"context"
	"errors"
	"time"

	"loyaltyhub/internal/adapters/persistence/models"
	"loyaltyhub/internal/core/domain"

	"gorm.io/gorm"
)

// pointsTransactionRepository implements PointsTransactionRepository interface
type pointsTransactionRepository struct {
	db *gorm.DB
}

// NewPointsTransactionRepository creates a new points transaction repository
func NewPointsTransactionRepository(db *gorm.DB) PointsTransactionRepository {
	return &pointsTransactionRepository{db: db}
}

// Save appends a transaction to the ledger. A duplicate idempotency key
// is rejected before insert; the unique index on idempotency_key backs
// this check under concurrency.
func (r *pointsTransactionRepository) Save(ctx context.Context, tx *domain.PointsTransaction) (*domain.PointsTransaction, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PointsTransaction{}).
		Where("idempotency_key = ?", tx.IdempotencyKey).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, domain.ErrDuplicateIdempotencyKey
	}

	row := models.TransactionFromDomain(tx)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row.ToDomain(), nil
}

// GetByID gets a transaction by ID
func (r *pointsTransactionRepository) GetByID(ctx context.Context, id uint) (*domain.PointsTransaction, error) {
	var row models.PointsTransaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// GetByIdempotencyKey gets a transaction by its idempotency key
func (r *pointsTransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.PointsTransaction, error) {
	var row models.PointsTransaction
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// ListByMembershipID lists transactions for a membership, newest first
func (r *pointsTransactionRepository) ListByMembershipID(ctx context.Context, membershipID uint, limit int) ([]*domain.PointsTransaction, error) {
	var rows []*models.PointsTransaction
	q := r.db.WithContext(ctx).
		Where("membership_id = ?", membershipID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainList(rows), nil
}

// ListByMembershipIDAndType lists transactions of one type, newest first
func (r *pointsTransactionRepository) ListByMembershipIDAndType(ctx context.Context, membershipID uint, txType domain.TransactionType, limit int) ([]*domain.PointsTransaction, error) {
	var rows []*models.PointsTransaction
	q := r.db.WithContext(ctx).
		Where("membership_id = ? AND type = ?", membershipID, string(txType)).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainList(rows), nil
}

// ListByMembershipIDAndTypeAndRewardID lists transactions of one type
// tied to a specific reward, newest first
func (r *pointsTransactionRepository) ListByMembershipIDAndTypeAndRewardID(ctx context.Context, membershipID uint, txType domain.TransactionType, rewardID uint) ([]*domain.PointsTransaction, error) {
	var rows []*models.PointsTransaction
	err := r.db.WithContext(ctx).
		Where("membership_id = ? AND type = ? AND reward_id = ?", membershipID, string(txType), rewardID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(rows), nil
}

// ListForTierEvaluation lists transactions inside an evaluation window,
// oldest first. Both bounds are inclusive.
func (r *pointsTransactionRepository) ListForTierEvaluation(ctx context.Context, membershipID uint, from, to time.Time) ([]*domain.PointsTransaction, error) {
	var rows []*models.PointsTransaction
	err := r.db.WithContext(ctx).
		Where("membership_id = ? AND created_at >= ? AND created_at <= ?", membershipID, from, to).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(rows), nil
}

// ListReversalsOf lists reversals pointing at the given transaction
func (r *pointsTransactionRepository) ListReversalsOf(ctx context.Context, transactionID uint) ([]*domain.PointsTransaction, error) {
	var rows []*models.PointsTransaction
	err := r.db.WithContext(ctx).
		Where("reversal_of_transaction_id = ?", transactionID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(rows), nil
}

// ListExpiring lists earning transactions whose expiry has passed
func (r *pointsTransactionRepository) ListExpiring(ctx context.Context, tenantID uint, before time.Time) ([]*domain.PointsTransaction, error) {
	var rows []*models.PointsTransaction
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND type = ? AND expires_at IS NOT NULL AND expires_at <= ?",
			tenantID, string(domain.TxEarning), before).
		Order("expires_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(rows), nil
}

// CalculateBalance sums the ledger for a membership
func (r *pointsTransactionRepository) CalculateBalance(ctx context.Context, membershipID uint) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).Model(&models.PointsTransaction{}).
		Where("membership_id = ?", membershipID).
		Select("COALESCE(SUM(points_delta), 0)").
		Scan(&balance).Error
	return balance, err
}

// CalculateBalanceByProgram sums the ledger for a membership within one program
func (r *pointsTransactionRepository) CalculateBalanceByProgram(ctx context.Context, membershipID, programID uint) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).Model(&models.PointsTransaction{}).
		Where("membership_id = ? AND program_id = ?", membershipID, programID).
		Select("COALESCE(SUM(points_delta), 0)").
		Scan(&balance).Error
	return balance, err
}

func toDomainList(rows []*models.PointsTransaction) []*domain.PointsTransaction {
	out := make([]*domain.PointsTransaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out
}
