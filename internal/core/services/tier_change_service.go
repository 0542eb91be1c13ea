package services

import (
	"context"
	"errors"
	"log"
	"time"

	"loyaltyhub/internal/adapters/persistence/repositories"
	"loyaltyhub/internal/core/domain"
	"loyaltyhub/internal/infrastructure/lock"
)

// Tier change classification
const (
	ChangeInitialAssignment = "initial_assignment"
	ChangeUpgrade           = "upgrade"
	ChangeDowngrade         = "downgrade"
	ChangeNone              = "no_change"
)

// TierChangeResult describes the outcome of one evaluate-and-apply cycle
type TierChangeResult struct {
	MembershipID   uint       `json:"membership_id"`
	ChangeType     string     `json:"change_type"`
	PreviousTierID *uint      `json:"previous_tier_id"`
	NewTierID      *uint      `json:"new_tier_id"`
	GraceUntil     *time.Time `json:"grace_until"`
	NextEvalAt     *time.Time `json:"next_eval_at"`
	Reason         string     `json:"reason"`
}

// TierChangeService is the state machine turning evaluation results
// into tier transitions. All mutations of a membership's tier standing
// run under a per-membership lock so a concurrent upgrade and downgrade
// cannot interleave their read-decide-write steps.
type TierChangeService struct {
	evaluationService *TierEvaluationService
	membershipRepo    repositories.MembershipRepository
	tierStatusRepo    repositories.TierStatusRepository
	tierPolicyRepo    repositories.TierPolicyRepository
	customerTierRepo  repositories.CustomerTierRepository
	publisher         *EventPublisher
	locker            lock.Locker
}

// NewTierChangeService creates a new tier change service
func NewTierChangeService(
	evaluationService *TierEvaluationService,
	membershipRepo repositories.MembershipRepository,
	tierStatusRepo repositories.TierStatusRepository,
	tierPolicyRepo repositories.TierPolicyRepository,
	customerTierRepo repositories.CustomerTierRepository,
	publisher *EventPublisher,
	locker lock.Locker,
) *TierChangeService {
	return &TierChangeService{
		evaluationService: evaluationService,
		membershipRepo:    membershipRepo,
		tierStatusRepo:    tierStatusRepo,
		tierPolicyRepo:    tierPolicyRepo,
		customerTierRepo:  customerTierRepo,
		publisher:         publisher,
		locker:            locker,
	}
}

// EvaluateAndApplyTierChange evaluates a membership and applies the
// resulting transition. Without an active policy it falls back to the
// simple points-based classification against the tier catalog.
func (s *TierChangeService) EvaluateAndApplyTierChange(ctx context.Context, membershipID uint) (*TierChangeResult, error) {
	membership, err := s.membershipRepo.GetByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	defer release()

	policy, err := s.tierPolicyRepo.GetActiveByTenantID(ctx, membership.TenantID)
	if err != nil {
		if errors.Is(err, domain.ErrTierPolicyMissing) {
			return s.applySimplePointsBased(ctx, membership)
		}
		return nil, err
	}

	evaluation, err := s.evaluationService.EvaluateTierWithPolicy(ctx, membershipID, policy)
	if err != nil {
		return nil, err
	}

	return s.ApplyTierChange(ctx, membership, policy, evaluation)
}

// ApplyTierChange turns an evaluation result into an actual transition.
// Caller must hold the membership lock.
func (s *TierChangeService) ApplyTierChange(ctx context.Context, membership *domain.CustomerMembership, policy *domain.TierPolicy, evaluation *TierEvaluationResult) (*TierChangeResult, error) {
	now := time.Now()

	status, err := s.tierStatusRepo.GetByMembershipID(ctx, membership.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		status = nil
	}

	switch {
	case evaluation.ShouldUpgrade:
		return s.applyUpgrade(ctx, membership, policy, status, *evaluation.RecommendedTierID, evaluation.Reason, now)

	case evaluation.ShouldDowngrade:
		// A grace period that has run out means the deferred downgrade
		// is due now
		if status != nil && status.GraceUntil != nil && !status.GraceUntil.After(now) {
			return s.applyDowngrade(ctx, membership, policy, status, evaluation.RecommendedTierID, evaluation.Reason, now)
		}
		if policy.UsesGracePeriod() {
			return s.startGracePeriod(ctx, membership, policy, status, evaluation.Reason, now)
		}
		return s.applyDowngrade(ctx, membership, policy, status, evaluation.RecommendedTierID, evaluation.Reason, now)

	default:
		return s.refreshNextEvaluation(ctx, membership, policy, status, evaluation.Reason, now)
	}
}

func (s *TierChangeService) applyUpgrade(ctx context.Context, membership *domain.CustomerMembership, policy *domain.TierPolicy, status *domain.TierStatus, newTierID uint, reason string, now time.Time) (*TierChangeResult, error) {
	nextEval := nextEvaluationDate(policy.EvaluationWindow, now)

	var previousTierID *uint
	var newStatus *domain.TierStatus
	if status == nil {
		created, err := domain.NewTierStatus(membership.ID, &newTierID, now, nil, &nextEval)
		if err != nil {
			return nil, err
		}
		newStatus = created
	} else {
		previousTierID = status.CurrentTierID
		newStatus = status.Upgrade(newTierID, &nextEval)
	}

	if err := s.tierStatusRepo.Save(ctx, newStatus); err != nil {
		return nil, err
	}
	if err := s.writeMembershipTier(ctx, membership, &newTierID); err != nil {
		return nil, err
	}

	changeType := ChangeUpgrade
	if previousTierID == nil {
		changeType = ChangeInitialAssignment
	}

	s.publisher.Publish(ctx, TopicTierEvents, EventTierUpgraded, membership.ID, map[string]interface{}{
		"previous_tier_id": previousTierID,
		"new_tier_id":      newTierID,
		"reason":           reason,
	})

	return &TierChangeResult{
		MembershipID:   membership.ID,
		ChangeType:     changeType,
		PreviousTierID: previousTierID,
		NewTierID:      &newTierID,
		NextEvalAt:     &nextEval,
		Reason:         reason,
	}, nil
}

func (s *TierChangeService) applyDowngrade(ctx context.Context, membership *domain.CustomerMembership, policy *domain.TierPolicy, status *domain.TierStatus, newTierID *uint, reason string, now time.Time) (*TierChangeResult, error) {
	nextEval := nextEvaluationDate(policy.EvaluationWindow, now)

	var previousTierID *uint
	var newStatus *domain.TierStatus
	if status == nil {
		created, err := domain.NewTierStatus(membership.ID, newTierID, now, nil, &nextEval)
		if err != nil {
			return nil, err
		}
		newStatus = created
	} else {
		previousTierID = status.CurrentTierID
		newStatus = status.Downgrade(newTierID, &nextEval)
	}

	if err := s.tierStatusRepo.Save(ctx, newStatus); err != nil {
		return nil, err
	}
	if err := s.writeMembershipTier(ctx, membership, newTierID); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, TopicTierEvents, EventTierDowngraded, membership.ID, map[string]interface{}{
		"previous_tier_id": previousTierID,
		"new_tier_id":      newTierID,
		"reason":           reason,
	})

	return &TierChangeResult{
		MembershipID:   membership.ID,
		ChangeType:     ChangeDowngrade,
		PreviousTierID: previousTierID,
		NewTierID:      newTierID,
		NextEvalAt:     &nextEval,
		Reason:         reason,
	}, nil
}

// startGracePeriod defers a due downgrade. The tier does not change yet
// and the next evaluation lands exactly when the grace period ends.
func (s *TierChangeService) startGracePeriod(ctx context.Context, membership *domain.CustomerMembership, policy *domain.TierPolicy, status *domain.TierStatus, reason string, now time.Time) (*TierChangeResult, error) {
	graceUntil := now.AddDate(0, 0, policy.GracePeriodDays)

	var newStatus *domain.TierStatus
	if status == nil {
		created, err := domain.NewTierStatus(membership.ID, membership.TierID, now, &graceUntil, &graceUntil)
		if err != nil {
			return nil, err
		}
		newStatus = created
	} else {
		newStatus = status.StartGracePeriod(graceUntil)
	}

	if err := s.tierStatusRepo.Save(ctx, newStatus); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, TopicTierEvents, EventTierGraceStarted, membership.ID, map[string]interface{}{
		"current_tier_id": newStatus.CurrentTierID,
		"grace_until":     graceUntil.UTC().Format(time.RFC3339),
		"reason":          reason,
	})

	return &TierChangeResult{
		MembershipID:   membership.ID,
		ChangeType:     ChangeNone,
		PreviousTierID: newStatus.CurrentTierID,
		NewTierID:      newStatus.CurrentTierID,
		GraceUntil:     &graceUntil,
		NextEvalAt:     &graceUntil,
		Reason:         reason,
	}, nil
}

func (s *TierChangeService) refreshNextEvaluation(ctx context.Context, membership *domain.CustomerMembership, policy *domain.TierPolicy, status *domain.TierStatus, reason string, now time.Time) (*TierChangeResult, error) {
	nextEval := nextEvaluationDate(policy.EvaluationWindow, now)

	var newStatus *domain.TierStatus
	if status == nil {
		created, err := domain.NewTierStatus(membership.ID, membership.TierID, now, nil, &nextEval)
		if err != nil {
			return nil, err
		}
		newStatus = created
	} else {
		newStatus = status.WithNextEvalAt(&nextEval)
	}

	if err := s.tierStatusRepo.Save(ctx, newStatus); err != nil {
		return nil, err
	}

	return &TierChangeResult{
		MembershipID:   membership.ID,
		ChangeType:     ChangeNone,
		PreviousTierID: newStatus.CurrentTierID,
		NewTierID:      newStatus.CurrentTierID,
		GraceUntil:     newStatus.GraceUntil,
		NextEvalAt:     &nextEval,
		Reason:         reason,
	}, nil
}

// applySimplePointsBased classifies the membership against the tier
// catalog by current balance. No policy means no grace periods and no
// scheduled evaluations.
func (s *TierChangeService) applySimplePointsBased(ctx context.Context, membership *domain.CustomerMembership) (*TierChangeResult, error) {
	tier, err := s.customerTierRepo.FindByPoints(ctx, membership.TenantID, membership.Points)
	if err != nil {
		if errors.Is(err, domain.ErrTierNotFound) {
			return &TierChangeResult{
				MembershipID:   membership.ID,
				ChangeType:     ChangeNone,
				PreviousTierID: membership.TierID,
				NewTierID:      membership.TierID,
				Reason:         "no catalog tier matches current balance",
			}, nil
		}
		return nil, err
	}

	if membership.TierID != nil && *membership.TierID == tier.ID {
		return &TierChangeResult{
			MembershipID:   membership.ID,
			ChangeType:     ChangeNone,
			PreviousTierID: membership.TierID,
			NewTierID:      membership.TierID,
			Reason:         "balance still matches current tier",
		}, nil
	}

	changeType := ChangeInitialAssignment
	eventType := EventTierUpgraded
	if membership.TierID != nil {
		current, err := s.customerTierRepo.GetByID(ctx, *membership.TierID)
		if err != nil && !errors.Is(err, domain.ErrTierNotFound) {
			return nil, err
		}
		if current != nil && tier.Priority < current.Priority {
			changeType = ChangeDowngrade
			eventType = EventTierDowngraded
		} else {
			changeType = ChangeUpgrade
		}
	}

	previousTierID := membership.TierID
	newTierID := tier.ID
	if err := s.writeMembershipTier(ctx, membership, &newTierID); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, TopicTierEvents, eventType, membership.ID, map[string]interface{}{
		"previous_tier_id": previousTierID,
		"new_tier_id":      newTierID,
		"mode":             "points_based",
	})

	return &TierChangeResult{
		MembershipID:   membership.ID,
		ChangeType:     changeType,
		PreviousTierID: previousTierID,
		NewTierID:      &newTierID,
		Reason:         "points-based catalog match without active policy",
	}, nil
}

// GetTierStatus returns the stored tier state for a membership
func (s *TierChangeService) GetTierStatus(ctx context.Context, membershipID uint) (*domain.TierStatus, error) {
	if _, err := s.membershipRepo.GetByID(ctx, membershipID); err != nil {
		return nil, err
	}
	return s.tierStatusRepo.GetByMembershipID(ctx, membershipID)
}

// ProcessExpiringGracePeriods re-evaluates every membership of a tenant
// whose grace period has lapsed. Intended to be driven by the scheduler.
func (s *TierChangeService) ProcessExpiringGracePeriods(ctx context.Context, tenantID uint) ([]*TierChangeResult, error) {
	statuses, err := s.tierStatusRepo.ListExpiredGracePeriods(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	return s.processStatuses(ctx, tenantID, statuses)
}

// ProcessPendingEvaluations re-evaluates every membership of a tenant
// whose next evaluation date has arrived.
func (s *TierChangeService) ProcessPendingEvaluations(ctx context.Context, tenantID uint) ([]*TierChangeResult, error) {
	statuses, err := s.tierStatusRepo.ListPendingEvaluation(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	return s.processStatuses(ctx, tenantID, statuses)
}

func (s *TierChangeService) processStatuses(ctx context.Context, tenantID uint, statuses []*domain.TierStatus) ([]*TierChangeResult, error) {
	results := make([]*TierChangeResult, 0, len(statuses))
	for _, status := range statuses {
		membership, err := s.membershipRepo.GetByID(ctx, status.MembershipID)
		if err != nil {
			log.Printf("⚠️  Skipping tier evaluation for membership %d: %v", status.MembershipID, err)
			continue
		}
		if membership.TenantID != tenantID {
			continue
		}
		result, err := s.EvaluateAndApplyTierChange(ctx, membership.ID)
		if err != nil {
			log.Printf("⚠️  Tier evaluation failed for membership %d: %v", membership.ID, err)
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// ForceUpgrade writes a tier directly, bypassing evaluation. An active
// policy must exist to compute the next evaluation date.
func (s *TierChangeService) ForceUpgrade(ctx context.Context, membershipID, newTierID, tenantID uint) (*TierChangeResult, error) {
	return s.force(ctx, membershipID, &newTierID, tenantID, EventTierUpgraded, ChangeUpgrade)
}

// ForceDowngrade writes a lower tier (or clears the tier) directly,
// bypassing evaluation.
func (s *TierChangeService) ForceDowngrade(ctx context.Context, membershipID uint, newTierID *uint, tenantID uint) (*TierChangeResult, error) {
	return s.force(ctx, membershipID, newTierID, tenantID, EventTierDowngraded, ChangeDowngrade)
}

func (s *TierChangeService) force(ctx context.Context, membershipID uint, newTierID *uint, tenantID uint, eventType, changeType string) (*TierChangeResult, error) {
	membership, err := s.membershipRepo.GetByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}

	policy, err := s.tierPolicyRepo.GetActiveByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if newTierID != nil {
		if _, err := s.customerTierRepo.GetByID(ctx, *newTierID); err != nil {
			return nil, err
		}
	}

	release, err := s.locker.Acquire(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	defer release()

	now := time.Now()
	nextEval := nextEvaluationDate(policy.EvaluationWindow, now)

	status, err := s.tierStatusRepo.GetByMembershipID(ctx, membershipID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		status = nil
	}

	var previousTierID *uint
	var newStatus *domain.TierStatus
	if status == nil {
		created, err := domain.NewTierStatus(membershipID, newTierID, now, nil, &nextEval)
		if err != nil {
			return nil, err
		}
		newStatus = created
	} else {
		previousTierID = status.CurrentTierID
		newStatus = status.Downgrade(newTierID, &nextEval)
	}

	if err := s.tierStatusRepo.Save(ctx, newStatus); err != nil {
		return nil, err
	}
	if err := s.writeMembershipTier(ctx, membership, newTierID); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, TopicTierEvents, eventType, membershipID, map[string]interface{}{
		"previous_tier_id": previousTierID,
		"new_tier_id":      newTierID,
		"forced":           true,
	})

	if previousTierID == nil && changeType == ChangeUpgrade {
		changeType = ChangeInitialAssignment
	}

	return &TierChangeResult{
		MembershipID:   membershipID,
		ChangeType:     changeType,
		PreviousTierID: previousTierID,
		NewTierID:      newTierID,
		NextEvalAt:     &nextEval,
		Reason:         "manual override",
	}, nil
}

func (s *TierChangeService) writeMembershipTier(ctx context.Context, membership *domain.CustomerMembership, tierID *uint) error {
	membership.TierID = tierID
	return s.membershipRepo.Update(ctx, membership)
}

// nextEvaluationDate schedules the following automatic evaluation
func nextEvaluationDate(window domain.EvaluationWindow, now time.Time) time.Time {
	switch window {
	case domain.WindowMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
	case domain.WindowQuarterly:
		quarterStartMonth := time.Month(((int(now.Month())-1)/3)*3 + 1)
		return time.Date(now.Year(), quarterStartMonth, 1, 0, 0, 0, 0, now.Location()).AddDate(0, 3, 0)
	case domain.WindowRolling30:
		return now.AddDate(0, 0, 30)
	case domain.WindowRolling90:
		return now.AddDate(0, 0, 90)
	default:
		return now.AddDate(0, 0, 30)
	}
}
