package repositories

import (
	"context"
	"errors"

	"loyaltyhub/internal/adapters/persistence/models"
	"loyaltyhub/internal/core/domain"

	"gorm.io/gorm"
)

// customerTierRepository implements CustomerTierRepository interface
type customerTierRepository struct {
	db *gorm.DB
}

// NewCustomerTierRepository creates a new customer tier repository
func NewCustomerTierRepository(db *gorm.DB) CustomerTierRepository {
	return &customerTierRepository{db: db}
}

// GetByID gets a tier by ID
func (r *customerTierRepository) GetByID(ctx context.Context, id uint) (*domain.CustomerTier, error) {
	var row models.CustomerTier
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTierNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// ListByTenantID lists tiers for a tenant ordered by priority
func (r *customerTierRepository) ListByTenantID(ctx context.Context, tenantID uint) ([]*domain.CustomerTier, error) {
	var rows []*models.CustomerTier
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("priority ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.CustomerTier, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out, nil
}

// FindByPoints finds the active tier whose point range contains the
// given balance. Tiers are checked in priority order.
func (r *customerTierRepository) FindByPoints(ctx context.Context, tenantID uint, points int64) (*domain.CustomerTier, error) {
	var rows []*models.CustomerTier
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, string(domain.TierActive)).
		Order("priority ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		tier := row.ToDomain()
		if tier.ContainsPoints(points) {
			return tier, nil
		}
	}
	return nil, domain.ErrTierNotFound
}
