package services

import (
	"context"
	"log"

	"loyaltyhub/internal/adapters/persistence/repositories"
)

// BalanceProjectionService maintains the cached points balance on the
// membership row. The ledger is the source of truth; the cached value
// only exists so reads avoid a SUM on every request.
type BalanceProjectionService struct {
	transactionRepo repositories.PointsTransactionRepository
	membershipRepo  repositories.MembershipRepository
}

// NewBalanceProjectionService creates a new balance projection service
func NewBalanceProjectionService(
	transactionRepo repositories.PointsTransactionRepository,
	membershipRepo repositories.MembershipRepository,
) *BalanceProjectionService {
	return &BalanceProjectionService{
		transactionRepo: transactionRepo,
		membershipRepo:  membershipRepo,
	}
}

// CalculateMembershipBalance sums the full ledger for a membership
func (s *BalanceProjectionService) CalculateMembershipBalance(ctx context.Context, membershipID uint) (int64, error) {
	return s.transactionRepo.CalculateBalance(ctx, membershipID)
}

// CalculateProgramBalance sums the ledger for one program only
func (s *BalanceProjectionService) CalculateProgramBalance(ctx context.Context, membershipID, programID uint) (int64, error) {
	return s.transactionRepo.CalculateBalanceByProgram(ctx, membershipID, programID)
}

// SyncAfterTransaction refreshes the cached balance after a ledger
// append and returns the new balance.
func (s *BalanceProjectionService) SyncAfterTransaction(ctx context.Context, membershipID uint) (int64, error) {
	balance, err := s.transactionRepo.CalculateBalance(ctx, membershipID)
	if err != nil {
		return 0, err
	}
	if err := s.membershipRepo.UpdateBalanceFromLedger(ctx, membershipID, balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// RecalculateBalance rebuilds the cached balance from scratch. Identical
// to SyncAfterTransaction but named for the admin repair path.
func (s *BalanceProjectionService) RecalculateBalance(ctx context.Context, membershipID uint) (int64, error) {
	return s.SyncAfterTransaction(ctx, membershipID)
}

// IntegrityReport describes a membership whose cached balance drifted
// from the ledger.
type IntegrityReport struct {
	MembershipID  uint  `json:"membership_id"`
	CachedBalance int64 `json:"cached_balance"`
	LedgerBalance int64 `json:"ledger_balance"`
}

// ValidateBalanceIntegrity compares every membership's cached balance
// against its ledger sum and reports mismatches without fixing them.
func (s *BalanceProjectionService) ValidateBalanceIntegrity(ctx context.Context, tenantID uint) ([]IntegrityReport, error) {
	memberships, err := s.membershipRepo.ListByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var drift []IntegrityReport
	for _, m := range memberships {
		ledger, err := s.transactionRepo.CalculateBalance(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		// the projection clamps negatives to zero
		if ledger < 0 {
			ledger = 0
		}
		if ledger != m.Points {
			drift = append(drift, IntegrityReport{
				MembershipID:  m.ID,
				CachedBalance: m.Points,
				LedgerBalance: ledger,
			})
		}
	}
	return drift, nil
}

// RecalculateBalancesBatch rebuilds every cached balance for a tenant.
// Failures are logged and skipped so one bad row never stops the batch.
func (s *BalanceProjectionService) RecalculateBalancesBatch(ctx context.Context, tenantID uint) (int, error) {
	memberships, err := s.membershipRepo.ListByTenantID(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, m := range memberships {
		if _, err := s.SyncAfterTransaction(ctx, m.ID); err != nil {
			log.Printf("⚠️  Failed to recalculate balance for membership %d: %v", m.ID, err)
			continue
		}
		updated++
	}
	return updated, nil
}
