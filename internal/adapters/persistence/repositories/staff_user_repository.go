package repositories

import (
	"context"
	"errors"

	"loyaltyhub/internal/adapters/persistence/models"
	"loyaltyhub/internal/core/domain"

	"gorm.io/gorm"
)

// staffUserRepository implements StaffUserRepository interface
type staffUserRepository struct {
	db *gorm.DB
}

// NewStaffUserRepository creates a new staff user repository
func NewStaffUserRepository(db *gorm.DB) StaffUserRepository {
	return &staffUserRepository{db: db}
}

// GetByUsername gets a staff user by username
func (r *staffUserRepository) GetByUsername(ctx context.Context, username string) (*domain.StaffUser, error) {
	var row models.StaffUser
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// Create creates a new staff user
func (r *staffUserRepository) Create(ctx context.Context, user *domain.StaffUser) error {
	row := &models.StaffUser{
		TenantID: user.TenantID,
		Username: user.Username,
		Password: user.Password,
		Role:     string(user.Role),
		IsActive: user.IsActive,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	user.ID = row.ID
	return nil
}

// ExistsByUsername checks if username exists
func (r *staffUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.StaffUser{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}
