package config

import (
	"encoding/json"
	"log"

	"loyaltyhub/internal/adapters/persistence/models"
	"loyaltyhub/internal/core/domain"
	"loyaltyhub/internal/pkg/password"

	"gorm.io/gorm"
)

// demo tenant used by the dev seeders
const seedTenantID = 1

// Seeder handles database seeding
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedTierCatalog(); err != nil {
		log.Printf("⚠️ Tier catalog seeder skipped: %v", err)
	}
	if err := s.seedTierPolicy(); err != nil {
		log.Printf("⚠️ Tier policy seeder skipped: %v", err)
	}
	if err := s.seedAdminUser(); err != nil {
		log.Printf("⚠️ Admin seeder skipped: %v", err)
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedTierCatalog seeds the demo tenant's Bronze/Silver/Gold tiers
func (s *Seeder) seedTierCatalog() error {
	var count int64
	s.db.Model(&models.CustomerTier{}).Where("tenant_id = ?", seedTenantID).Count(&count)
	if count > 0 {
		return nil // Catalog already seeded
	}

	silverMax := int64(499)
	bronzeMax := int64(99)
	tiers := []*models.CustomerTier{
		{TenantID: seedTenantID, Name: "Bronze", MinPoints: 0, MaxPoints: &bronzeMax, Priority: 1, Status: string(domain.TierActive)},
		{TenantID: seedTenantID, Name: "Silver", MinPoints: 100, MaxPoints: &silverMax, Priority: 2, Status: string(domain.TierActive)},
		{TenantID: seedTenantID, Name: "Gold", MinPoints: 500, MaxPoints: nil, Priority: 3, Status: string(domain.TierActive)},
	}
	return s.db.Create(&tiers).Error
}

// seedTierPolicy seeds an active monthly policy with grace periods.
// Thresholds reference the catalog tiers by id in seed order.
func (s *Seeder) seedTierPolicy() error {
	var count int64
	s.db.Model(&models.TierPolicy{}).
		Where("tenant_id = ? AND status = ?", seedTenantID, string(domain.PolicyActive)).
		Count(&count)
	if count > 0 {
		return nil // Active policy already exists
	}

	var tiers []*models.CustomerTier
	if err := s.db.Where("tenant_id = ?", seedTenantID).Order("priority ASC").Find(&tiers).Error; err != nil {
		return err
	}
	if len(tiers) == 0 {
		return nil // Nothing to reference
	}

	thresholds := map[uint]int64{}
	for _, t := range tiers {
		thresholds[t.ID] = t.MinPoints
	}
	raw, err := json.Marshal(thresholds)
	if err != nil {
		return err
	}

	policy := &models.TierPolicy{
		TenantID:          seedTenantID,
		EvaluationWindow:  string(domain.WindowMonthly),
		EvaluationType:    string(domain.EvaluationFixed),
		Thresholds:        string(raw),
		GracePeriodDays:   30,
		MinTierDuration:   0,
		DowngradeStrategy: string(domain.DowngradeGracePeriod),
		Status:            string(domain.PolicyActive),
		Description:       "Default monthly evaluation with 30-day downgrade grace",
	}
	return s.db.Create(policy).Error
}

// seedAdminUser seeds default admin user
// This is for development/testing only
// In production, create admin through secure process
func (s *Seeder) seedAdminUser() error {
	var count int64
	s.db.Model(&models.StaffUser{}).Where("role = ?", string(domain.RoleAdmin)).Count(&count)
	if count > 0 {
		return nil // Admin already exists
	}

	hashedPassword, err := password.Hash("admin123456")
	if err != nil {
		return err
	}

	admin := &models.StaffUser{
		TenantID: seedTenantID,
		Username: "admin",
		Password: hashedPassword,
		Role:     string(domain.RoleAdmin),
		IsActive: true,
	}
	return s.db.Create(admin).Error
}
