package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"loyaltyhub/internal/adapters/persistence/repositories"
	"loyaltyhub/internal/core/domain"
)

// ExpirationService sweeps EARNING rows whose expiry has passed and
// appends compensating EXPIRATION rows. An earning is expired at most
// once; the deterministic idempotency key per earning enforces that.
type ExpirationService struct {
	transactionRepo repositories.PointsTransactionRepository
	membershipRepo  repositories.MembershipRepository
	balanceService  *BalanceProjectionService
	publisher       *EventPublisher
}

// NewExpirationService creates a new expiration service
func NewExpirationService(
	transactionRepo repositories.PointsTransactionRepository,
	membershipRepo repositories.MembershipRepository,
	balanceService *BalanceProjectionService,
	publisher *EventPublisher,
) *ExpirationService {
	return &ExpirationService{
		transactionRepo: transactionRepo,
		membershipRepo:  membershipRepo,
		balanceService:  balanceService,
		publisher:       publisher,
	}
}

// ProcessExpiredPoints expires lapsed earnings for a tenant and returns
// the number of EXPIRATION rows written.
func (s *ExpirationService) ProcessExpiredPoints(ctx context.Context, tenantID uint) (int, error) {
	expiring, err := s.transactionRepo.ListExpiring(ctx, tenantID, time.Now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, earning := range expiring {
		written, err := s.expireEarning(ctx, earning)
		if err != nil {
			if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
				// already expired in a previous sweep
				continue
			}
			log.Printf("⚠️  Failed to expire earning %d: %v", earning.ID, err)
			continue
		}
		if written {
			expired++
		}
	}
	return expired, nil
}

// expireEarning returns true when an EXPIRATION row was written. An
// earning whose points are already spent or expired produces no row.
func (s *ExpirationService) expireEarning(ctx context.Context, earning *domain.PointsTransaction) (bool, error) {
	// Expire at most what is still in the balance so the projection
	// never clamps away real history
	balance, err := s.transactionRepo.CalculateBalance(ctx, earning.MembershipID)
	if err != nil {
		return false, err
	}
	toExpire := earning.PointsDelta
	if balance < toExpire {
		toExpire = balance
	}
	if toExpire <= 0 {
		return false, nil
	}

	key := fmt.Sprintf("EXPIRATION-%d", earning.ID)
	tx, err := domain.NewExpiration(earning.TenantID, earning.CustomerID, earning.MembershipID, -toExpire, key)
	if err != nil {
		return false, err
	}
	tx.Metadata = domain.Metadata{
		"expiredEarningId": earning.ID,
		"originalPoints":   earning.PointsDelta,
	}

	saved, err := s.transactionRepo.Save(ctx, tx)
	if err != nil {
		return false, err
	}

	newBalance, err := s.balanceService.SyncAfterTransaction(ctx, earning.MembershipID)
	if err != nil {
		return false, err
	}

	s.publisher.Publish(ctx, TopicPointsEvents, EventPointsExpired, earning.MembershipID, map[string]interface{}{
		"transaction_id": saved.ID,
		"expired_points": toExpire,
		"earning_id":     earning.ID,
		"new_balance":    newBalance,
	})
	return true, nil
}
