package repositories

import (
	"context"
	"errors"
	"time"

	"loyaltyhub/internal/adapters/persistence/models"
	"loyaltyhub/internal/core/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tierStatusRepository implements TierStatusRepository interface
type tierStatusRepository struct {
	db *gorm.DB
}

// NewTierStatusRepository creates a new tier status repository
func NewTierStatusRepository(db *gorm.DB) TierStatusRepository {
	return &tierStatusRepository{db: db}
}

// GetByMembershipID gets the tier status for a membership
func (r *tierStatusRepository) GetByMembershipID(ctx context.Context, membershipID uint) (*domain.TierStatus, error) {
	var row models.TierStatus
	err := r.db.WithContext(ctx).Where("membership_id = ?", membershipID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// Save upserts the tier status row for a membership
func (r *tierStatusRepository) Save(ctx context.Context, status *domain.TierStatus) error {
	row := models.TierStatusFromDomain(status)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "membership_id"}},
		UpdateAll: true,
	}).Create(row).Error
}

// ListPendingEvaluation lists statuses whose next evaluation is due
func (r *tierStatusRepository) ListPendingEvaluation(ctx context.Context, now time.Time) ([]*domain.TierStatus, error) {
	var rows []*models.TierStatus
	err := r.db.WithContext(ctx).
		Where("next_eval_at IS NOT NULL AND next_eval_at <= ?", now).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return tierStatusList(rows), nil
}

// ListExpiredGracePeriods lists statuses whose grace period has lapsed
func (r *tierStatusRepository) ListExpiredGracePeriods(ctx context.Context, now time.Time) ([]*domain.TierStatus, error) {
	var rows []*models.TierStatus
	err := r.db.WithContext(ctx).
		Where("grace_until IS NOT NULL AND grace_until <= ?", now).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return tierStatusList(rows), nil
}

func tierStatusList(rows []*models.TierStatus) []*domain.TierStatus {
	out := make([]*domain.TierStatus, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out
}
