package repositories

import (
	"context"
	"errors"
	"log"

	"loyaltyhub/internal/adapters/persistence/models"
	"loyaltyhub/internal/core/domain"

	"gorm.io/gorm"
)

// membershipRepository implements MembershipRepository interface
type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

// GetByID gets a membership by ID
func (r *membershipRepository) GetByID(ctx context.Context, id uint) (*domain.CustomerMembership, error) {
	var row models.CustomerMembership
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// ListByTenantID lists memberships for a tenant
func (r *membershipRepository) ListByTenantID(ctx context.Context, tenantID uint) ([]*domain.CustomerMembership, error) {
	var rows []*models.CustomerMembership
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.CustomerMembership, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out, nil
}

// ListTenantIDs lists the distinct tenants that have memberships
func (r *membershipRepository) ListTenantIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.CustomerMembership{}).
		Distinct("tenant_id").
		Pluck("tenant_id", &ids).Error
	return ids, err
}

// Update updates a membership. Direct changes to the points balance are
// ignored: the stored value is re-read and kept, since the balance only
// moves through UpdateBalanceFromLedger.
func (r *membershipRepository) Update(ctx context.Context, membership *domain.CustomerMembership) error {
	var current models.CustomerMembership
	err := r.db.WithContext(ctx).Where("id = ?", membership.ID).First(&current).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrMembershipNotFound
		}
		return err
	}

	if membership.Points != current.Points {
		log.Printf("⚠️  Ignoring direct points change for membership %d (%d -> %d); balance is ledger-derived",
			membership.ID, current.Points, membership.Points)
		membership.Points = current.Points
	}

	row := models.MembershipFromDomain(membership)
	row.CreatedAt = current.CreatedAt
	return r.db.WithContext(ctx).Save(row).Error
}

// UpdateBalanceFromLedger writes the projected balance. Negative values
// are clamped to zero.
func (r *membershipRepository) UpdateBalanceFromLedger(ctx context.Context, membershipID uint, balance int64) error {
	if balance < 0 {
		balance = 0
	}
	result := r.db.WithContext(ctx).Model(&models.CustomerMembership{}).
		Where("id = ?", membershipID).
		Update("points", balance)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrMembershipNotFound
	}
	return nil
}
