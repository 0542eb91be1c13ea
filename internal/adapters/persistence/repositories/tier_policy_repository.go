package repositories

import (
	"context"
	"errors"

	"loyaltyhub/internal/adapters/persistence/models"
	"loyaltyhub/internal/core/domain"

	"gorm.io/gorm"
)

// tierPolicyRepository implements TierPolicyRepository interface
type tierPolicyRepository struct {
	db *gorm.DB
}

// NewTierPolicyRepository creates a new tier policy repository
func NewTierPolicyRepository(db *gorm.DB) TierPolicyRepository {
	return &tierPolicyRepository{db: db}
}

// GetActiveByTenantID gets the single active policy for a tenant
func (r *tierPolicyRepository) GetActiveByTenantID(ctx context.Context, tenantID uint) (*domain.TierPolicy, error) {
	var row models.TierPolicy
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, string(domain.PolicyActive)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTierPolicyMissing
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// GetByID gets a policy by ID
func (r *tierPolicyRepository) GetByID(ctx context.Context, id uint) (*domain.TierPolicy, error) {
	var row models.TierPolicy
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTierPolicyMissing
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// Save creates or updates a policy
func (r *tierPolicyRepository) Save(ctx context.Context, policy *domain.TierPolicy) error {
	row := models.TierPolicyFromDomain(policy)
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return err
	}
	policy.ID = row.ID
	return nil
}
