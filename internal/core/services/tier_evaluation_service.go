package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loyaltyhub/internal/adapters/persistence/repositories"
	"loyaltyhub/internal/core/domain"
)

// TierEvaluationService computes in-window point metrics and decides
// which tier a membership qualifies for. It never writes anything;
// applying the decision belongs to TierChangeService.
type TierEvaluationService struct {
	transactionRepo repositories.PointsTransactionRepository
	tierStatusRepo  repositories.TierStatusRepository
	tierPolicyRepo  repositories.TierPolicyRepository
	customerTierRepo repositories.CustomerTierRepository
}

// NewTierEvaluationService creates a new tier evaluation service
func NewTierEvaluationService(
	transactionRepo repositories.PointsTransactionRepository,
	tierStatusRepo repositories.TierStatusRepository,
	tierPolicyRepo repositories.TierPolicyRepository,
	customerTierRepo repositories.CustomerTierRepository,
) *TierEvaluationService {
	return &TierEvaluationService{
		transactionRepo:  transactionRepo,
		tierStatusRepo:   tierStatusRepo,
		tierPolicyRepo:   tierPolicyRepo,
		customerTierRepo: customerTierRepo,
	}
}

// TierMetrics are the point/earning aggregates over an evaluation window
type TierMetrics struct {
	TotalPoints                 int64   `json:"total_points"`
	TotalEarnings               int64   `json:"total_earnings"`
	TotalSpent                  float64 `json:"total_spent"`
	TransactionCount            int     `json:"transaction_count"`
	AveragePointsPerTransaction float64 `json:"average_points_per_transaction"`
	WindowStart                 time.Time `json:"window_start"`
	WindowEnd                   time.Time `json:"window_end"`
}

// TierEvaluationResult is the outcome of one evaluation
type TierEvaluationResult struct {
	MembershipID      uint        `json:"membership_id"`
	CurrentTierID     *uint       `json:"current_tier_id"`
	RecommendedTierID *uint       `json:"recommended_tier_id"`
	ShouldUpgrade     bool        `json:"should_upgrade"`
	ShouldDowngrade   bool        `json:"should_downgrade"`
	Reason            string      `json:"reason"`
	Metrics           TierMetrics `json:"metrics"`
}

// EvaluateTier evaluates a membership against the tenant's active policy
func (s *TierEvaluationService) EvaluateTier(ctx context.Context, membershipID, tenantID uint) (*TierEvaluationResult, error) {
	policy, err := s.tierPolicyRepo.GetActiveByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.EvaluateTierWithPolicy(ctx, membershipID, policy)
}

// EvaluateTierWithPolicy evaluates a membership against a given policy
func (s *TierEvaluationService) EvaluateTierWithPolicy(ctx context.Context, membershipID uint, policy *domain.TierPolicy) (*TierEvaluationResult, error) {
	now := time.Now()

	metrics, err := s.CalculateMetrics(ctx, membershipID, policy.EvaluationWindow, now)
	if err != nil {
		return nil, err
	}

	tiers, err := s.customerTierRepo.ListByTenantID(ctx, policy.TenantID)
	if err != nil {
		return nil, err
	}
	activeTiers := make(map[uint]bool, len(tiers))
	for _, t := range tiers {
		if t.IsActive() {
			activeTiers[t.ID] = true
		}
	}

	recommendedTierID := determineRecommendedTier(policy, activeTiers, metrics.TotalPoints)

	status, err := s.tierStatusRepo.GetByMembershipID(ctx, membershipID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		status = nil
	}

	var currentTierID *uint
	if status != nil {
		currentTierID = status.CurrentTierID
	}

	result := &TierEvaluationResult{
		MembershipID:      membershipID,
		CurrentTierID:     currentTierID,
		RecommendedTierID: recommendedTierID,
		Metrics:           *metrics,
	}

	result.ShouldUpgrade = shouldUpgrade(policy, status, currentTierID, recommendedTierID)
	result.ShouldDowngrade = shouldDowngrade(policy, status, currentTierID, recommendedTierID)
	result.Reason = evaluationReason(result, metrics.TotalPoints)

	return result, nil
}

// CalculateMetrics aggregates ledger activity inside the evaluation
// window ending at now.
func (s *TierEvaluationService) CalculateMetrics(ctx context.Context, membershipID uint, window domain.EvaluationWindow, now time.Time) (*TierMetrics, error) {
	from := windowStart(window, now)

	transactions, err := s.transactionRepo.ListForTierEvaluation(ctx, membershipID, from, now)
	if err != nil {
		return nil, err
	}

	metrics := &TierMetrics{WindowStart: from, WindowEnd: now}
	for _, tx := range transactions {
		metrics.TotalPoints += tx.PointsDelta
		if tx.PointsDelta > 0 {
			metrics.TotalEarnings += tx.PointsDelta
		}
		// EARNING rows may carry the purchase amount that produced them
		if tx.Type == domain.TxEarning {
			switch amount := tx.Metadata["amount"].(type) {
			case float64:
				metrics.TotalSpent += amount
			case int64:
				metrics.TotalSpent += float64(amount)
			case int:
				metrics.TotalSpent += float64(amount)
			}
		}
	}
	metrics.TransactionCount = len(transactions)
	if metrics.TransactionCount > 0 {
		metrics.AveragePointsPerTransaction = float64(metrics.TotalPoints) / float64(metrics.TransactionCount)
	}

	return metrics, nil
}

// windowStart returns the inclusive lower bound of an evaluation window
func windowStart(window domain.EvaluationWindow, now time.Time) time.Time {
	switch window {
	case domain.WindowMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case domain.WindowQuarterly:
		quarterStartMonth := time.Month(((int(now.Month())-1)/3)*3 + 1)
		return time.Date(now.Year(), quarterStartMonth, 1, 0, 0, 0, 0, now.Location())
	case domain.WindowRolling30:
		return now.AddDate(0, 0, -30)
	case domain.WindowRolling90:
		return now.AddDate(0, 0, -90)
	default:
		return now.AddDate(0, 0, -30)
	}
}

// determineRecommendedTier walks policy tiers from the highest threshold
// down and picks the first one the member qualifies for. Tiers missing
// from the active catalog are skipped even when the policy names them.
func determineRecommendedTier(policy *domain.TierPolicy, activeTiers map[uint]bool, totalPoints int64) *uint {
	ordered := policy.TiersOrderedByPoints()
	for i := len(ordered) - 1; i >= 0; i-- {
		tierID := ordered[i]
		if !activeTiers[tierID] {
			continue
		}
		min, _ := policy.MinPointsForTier(tierID)
		if min <= totalPoints {
			id := tierID
			return &id
		}
	}
	return nil
}

func shouldUpgrade(policy *domain.TierPolicy, status *domain.TierStatus, currentTierID, recommendedTierID *uint) bool {
	if recommendedTierID == nil {
		return false
	}
	if currentTierID != nil {
		currentMin, ok := policy.MinPointsForTier(*currentTierID)
		recommendedMin, _ := policy.MinPointsForTier(*recommendedTierID)
		if ok && recommendedMin <= currentMin {
			return false
		}
	}
	// Hold the current tier at least minTierDuration days before climbing
	if status != nil && policy.MinTierDuration > 0 && status.DaysInCurrentTier() < policy.MinTierDuration {
		return false
	}
	return true
}

func shouldDowngrade(policy *domain.TierPolicy, status *domain.TierStatus, currentTierID, recommendedTierID *uint) bool {
	if !policy.AllowsDowngrade() {
		return false
	}
	if currentTierID == nil {
		return false
	}
	currentMin, ok := policy.MinPointsForTier(*currentTierID)
	if !ok {
		return false
	}
	if recommendedTierID != nil {
		recommendedMin, _ := policy.MinPointsForTier(*recommendedTierID)
		if recommendedMin >= currentMin {
			return false
		}
	}
	// An active grace period defers the decision until it expires
	if status != nil && status.IsInGracePeriod() {
		return false
	}
	return true
}

func evaluationReason(result *TierEvaluationResult, totalPoints int64) string {
	switch {
	case result.ShouldUpgrade:
		return fmt.Sprintf("qualifies for upgrade to tier %d with %d points in window", *result.RecommendedTierID, totalPoints)
	case result.ShouldDowngrade:
		if result.RecommendedTierID != nil {
			return fmt.Sprintf("no longer qualifies for current tier, recommended tier %d with %d points in window", *result.RecommendedTierID, totalPoints)
		}
		return fmt.Sprintf("no longer qualifies for any tier with %d points in window", totalPoints)
	default:
		return fmt.Sprintf("no tier change required with %d points in window", totalPoints)
	}
}
