package services

import (
	"context"
	"log"

	"loyaltyhub/internal/adapters/persistence/repositories"

	"github.com/robfig/cron/v3"
)

// CronService schedules the periodic loyalty sweeps: grace period
// expiry, pending tier evaluations and point expiration. Each sweep
// runs per tenant so one tenant's failure never blocks the others.
type CronService struct {
	cron              *cron.Cron
	membershipRepo    repositories.MembershipRepository
	tierChangeService *TierChangeService
	expirationService *ExpirationService
}

// NewCronService creates a new cron service
func NewCronService(
	membershipRepo repositories.MembershipRepository,
	tierChangeService *TierChangeService,
	expirationService *ExpirationService,
) *CronService {
	return &CronService{
		cron:              cron.New(),
		membershipRepo:    membershipRepo,
		tierChangeService: tierChangeService,
		expirationService: expirationService,
	}
}

// Start registers and launches all scheduled jobs
func (s *CronService) Start() {
	// Tier sweeps nightly at 02:00
	s.cron.AddFunc("0 2 * * *", s.runTierSweeps)

	// Point expiration on the 1st of each month at 03:00
	s.cron.AddFunc("0 3 1 * *", s.runExpirationSweep)

	s.cron.Start()
	log.Println("🚀 CronService started")
}

// Stop halts the scheduler
func (s *CronService) Stop() {
	s.cron.Stop()
	log.Println("CronService stopped")
}

func (s *CronService) runTierSweeps() {
	ctx := context.Background()
	tenants, err := s.membershipRepo.ListTenantIDs(ctx)
	if err != nil {
		log.Printf("⚠️  Tier sweep aborted, cannot list tenants: %v", err)
		return
	}

	for _, tenantID := range tenants {
		graceResults, err := s.tierChangeService.ProcessExpiringGracePeriods(ctx, tenantID)
		if err != nil {
			log.Printf("⚠️  Grace period sweep failed for tenant %d: %v", tenantID, err)
		} else if len(graceResults) > 0 {
			log.Printf("Tier sweep: processed %d expired grace periods for tenant %d", len(graceResults), tenantID)
		}

		evalResults, err := s.tierChangeService.ProcessPendingEvaluations(ctx, tenantID)
		if err != nil {
			log.Printf("⚠️  Pending evaluation sweep failed for tenant %d: %v", tenantID, err)
		} else if len(evalResults) > 0 {
			log.Printf("Tier sweep: processed %d pending evaluations for tenant %d", len(evalResults), tenantID)
		}
	}
}

func (s *CronService) runExpirationSweep() {
	ctx := context.Background()
	tenants, err := s.membershipRepo.ListTenantIDs(ctx)
	if err != nil {
		log.Printf("⚠️  Expiration sweep aborted, cannot list tenants: %v", err)
		return
	}

	for _, tenantID := range tenants {
		expired, err := s.expirationService.ProcessExpiredPoints(ctx, tenantID)
		if err != nil {
			log.Printf("⚠️  Expiration sweep failed for tenant %d: %v", tenantID, err)
			continue
		}
		if expired > 0 {
			log.Printf("Expiration sweep: expired %d earnings for tenant %d", expired, tenantID)
		}
	}
}
