package services

import (
	"context"
	"sync"
	"time"

	"loyaltyhub/internal/adapters/persistence/models"
	"loyaltyhub/internal/core/domain"
	"loyaltyhub/internal/infrastructure/lock"
)

// In-memory repository fakes backing the service tests. They mirror the
// semantics of the gorm implementations closely enough that the services
// cannot tell the difference: Save enforces idempotency key uniqueness,
// Update ignores direct points changes, and the projection clamp applies
// in UpdateBalanceFromLedger.

type fakeTransactionRepo struct {
	mu     sync.Mutex
	rows   []*domain.PointsTransaction
	nextID uint
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{nextID: 1}
}

func (r *fakeTransactionRepo) Save(_ context.Context, tx *domain.PointsTransaction) (*domain.PointsTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.IdempotencyKey == tx.IdempotencyKey {
			return nil, domain.ErrDuplicateIdempotencyKey
		}
	}
	saved := *tx
	saved.ID = r.nextID
	r.nextID++
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now()
	}
	r.rows = append(r.rows, &saved)
	out := saved
	return &out, nil
}

func (r *fakeTransactionRepo) GetByID(_ context.Context, id uint) (*domain.PointsTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			out := *row
			return &out, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (r *fakeTransactionRepo) GetByIdempotencyKey(_ context.Context, key string) (*domain.PointsTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.IdempotencyKey == key {
			out := *row
			return &out, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (r *fakeTransactionRepo) ListByMembershipID(_ context.Context, membershipID uint, limit int) ([]*domain.PointsTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PointsTransaction
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if r.rows[i].MembershipID == membershipID {
			row := *r.rows[i]
			out = append(out, &row)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) ListByMembershipIDAndType(_ context.Context, membershipID uint, txType domain.TransactionType, limit int) ([]*domain.PointsTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PointsTransaction
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if r.rows[i].MembershipID == membershipID && r.rows[i].Type == txType {
			row := *r.rows[i]
			out = append(out, &row)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) ListByMembershipIDAndTypeAndRewardID(_ context.Context, membershipID uint, txType domain.TransactionType, rewardID uint) ([]*domain.PointsTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PointsTransaction
	for _, row := range r.rows {
		if row.MembershipID == membershipID && row.Type == txType && row.RewardID != nil && *row.RewardID == rewardID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) ListForTierEvaluation(_ context.Context, membershipID uint, from, to time.Time) ([]*domain.PointsTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PointsTransaction
	for _, row := range r.rows {
		if row.MembershipID != membershipID {
			continue
		}
		if row.CreatedAt.Before(from) || row.CreatedAt.After(to) {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeTransactionRepo) ListReversalsOf(_ context.Context, transactionID uint) ([]*domain.PointsTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PointsTransaction
	for _, row := range r.rows {
		if row.ReversalOfTransactionID != nil && *row.ReversalOfTransactionID == transactionID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) ListExpiring(_ context.Context, tenantID uint, before time.Time) ([]*domain.PointsTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PointsTransaction
	for _, row := range r.rows {
		if row.TenantID == tenantID && row.Type == domain.TxEarning && row.ExpiresAt != nil && !row.ExpiresAt.After(before) {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) CalculateBalance(_ context.Context, membershipID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, row := range r.rows {
		if row.MembershipID == membershipID {
			sum += row.PointsDelta
		}
	}
	return sum, nil
}

func (r *fakeTransactionRepo) CalculateBalanceByProgram(_ context.Context, membershipID, programID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, row := range r.rows {
		if row.MembershipID == membershipID && row.ProgramID != nil && *row.ProgramID == programID {
			sum += row.PointsDelta
		}
	}
	return sum, nil
}

func (r *fakeTransactionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type fakeMembershipRepo struct {
	mu          sync.Mutex
	memberships map[uint]*domain.CustomerMembership
}

func newFakeMembershipRepo(memberships ...*domain.CustomerMembership) *fakeMembershipRepo {
	r := &fakeMembershipRepo{memberships: make(map[uint]*domain.CustomerMembership)}
	for _, m := range memberships {
		cp := *m
		r.memberships[m.ID] = &cp
	}
	return r
}

func (r *fakeMembershipRepo) GetByID(_ context.Context, id uint) (*domain.CustomerMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[id]
	if !ok {
		return nil, domain.ErrMembershipNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMembershipRepo) ListByTenantID(_ context.Context, tenantID uint) ([]*domain.CustomerMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.CustomerMembership
	for _, m := range r.memberships {
		if m.TenantID == tenantID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeMembershipRepo) ListTenantIDs(_ context.Context) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uint]bool)
	var out []uint
	for _, m := range r.memberships {
		if !seen[m.TenantID] {
			seen[m.TenantID] = true
			out = append(out, m.TenantID)
		}
	}
	return out, nil
}

// Update mirrors the gorm repository: direct points changes are ignored,
// the cached balance only moves through UpdateBalanceFromLedger.
func (r *fakeMembershipRepo) Update(_ context.Context, membership *domain.CustomerMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.memberships[membership.ID]
	if !ok {
		return domain.ErrMembershipNotFound
	}
	cp := *membership
	cp.Points = existing.Points
	r.memberships[membership.ID] = &cp
	return nil
}

func (r *fakeMembershipRepo) UpdateBalanceFromLedger(_ context.Context, membershipID uint, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[membershipID]
	if !ok {
		return domain.ErrMembershipNotFound
	}
	if balance < 0 {
		balance = 0
	}
	m.Points = balance
	return nil
}

func (r *fakeMembershipRepo) get(id uint) *domain.CustomerMembership {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.memberships[id]
	return &cp
}

type fakeTierStatusRepo struct {
	mu       sync.Mutex
	statuses map[uint]*domain.TierStatus
}

func newFakeTierStatusRepo() *fakeTierStatusRepo {
	return &fakeTierStatusRepo{statuses: make(map[uint]*domain.TierStatus)}
}

func (r *fakeTierStatusRepo) GetByMembershipID(_ context.Context, membershipID uint) (*domain.TierStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.statuses[membershipID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeTierStatusRepo) Save(_ context.Context, status *domain.TierStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *status
	r.statuses[status.MembershipID] = &cp
	return nil
}

func (r *fakeTierStatusRepo) ListPendingEvaluation(_ context.Context, now time.Time) ([]*domain.TierStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TierStatus
	for _, s := range r.statuses {
		if s.NextEvalAt != nil && !s.NextEvalAt.After(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTierStatusRepo) ListExpiredGracePeriods(_ context.Context, now time.Time) ([]*domain.TierStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TierStatus
	for _, s := range r.statuses {
		if s.GraceUntil != nil && !s.GraceUntil.After(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeTierPolicyRepo struct {
	mu       sync.Mutex
	policies map[uint]*domain.TierPolicy
	nextID   uint
}

func newFakeTierPolicyRepo(policies ...*domain.TierPolicy) *fakeTierPolicyRepo {
	r := &fakeTierPolicyRepo{policies: make(map[uint]*domain.TierPolicy), nextID: 1}
	for _, p := range policies {
		r.Save(context.Background(), p)
	}
	return r
}

func (r *fakeTierPolicyRepo) GetActiveByTenantID(_ context.Context, tenantID uint) (*domain.TierPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.policies {
		if p.TenantID == tenantID && p.IsActive() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrTierPolicyMissing
}

func (r *fakeTierPolicyRepo) GetByID(_ context.Context, id uint) (*domain.TierPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.policies[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeTierPolicyRepo) Save(_ context.Context, policy *domain.TierPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if policy.ID == 0 {
		policy.ID = r.nextID
		r.nextID++
	}
	cp := *policy
	r.policies[policy.ID] = &cp
	return nil
}

type fakeCustomerTierRepo struct {
	mu    sync.Mutex
	tiers []*domain.CustomerTier
}

func newFakeCustomerTierRepo(tiers ...*domain.CustomerTier) *fakeCustomerTierRepo {
	r := &fakeCustomerTierRepo{}
	for _, t := range tiers {
		cp := *t
		r.tiers = append(r.tiers, &cp)
	}
	return r
}

func (r *fakeCustomerTierRepo) GetByID(_ context.Context, id uint) (*domain.CustomerTier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tiers {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrTierNotFound
}

func (r *fakeCustomerTierRepo) ListByTenantID(_ context.Context, tenantID uint) ([]*domain.CustomerTier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.CustomerTier
	for _, t := range r.tiers {
		if t.TenantID == tenantID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeCustomerTierRepo) FindByPoints(_ context.Context, tenantID uint, points int64) (*domain.CustomerTier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *domain.CustomerTier
	for _, t := range r.tiers {
		if t.TenantID != tenantID || !t.IsActive() || !t.ContainsPoints(points) {
			continue
		}
		if best == nil || t.Priority < best.Priority {
			best = t
		}
	}
	if best == nil {
		return nil, domain.ErrTierNotFound
	}
	cp := *best
	return &cp, nil
}

type fakeOutboxRepo struct {
	mu     sync.Mutex
	events []*models.OutboxEvent
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{}
}

func (r *fakeOutboxRepo) Enqueue(_ context.Context, event *models.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.Status = models.OutboxStatusPending
	cp := *event
	cp.ID = uint(len(r.events) + 1)
	r.events = append(r.events, &cp)
	return nil
}

func (r *fakeOutboxRepo) ListPending(_ context.Context, limit int) ([]*models.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.OutboxEvent
	for _, e := range r.events {
		if e.Status == models.OutboxStatusPending && len(out) < limit {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeOutboxRepo) MarkSent(_ context.Context, id uint) error {
	return r.setStatus(id, models.OutboxStatusSent)
}

func (r *fakeOutboxRepo) MarkFailed(_ context.Context, id uint) error {
	return r.setStatus(id, models.OutboxStatusFailed)
}

func (r *fakeOutboxRepo) IncrementRetry(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			e.RetryCount++
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *fakeOutboxRepo) setStatus(id uint, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			e.Status = status
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *fakeOutboxRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

// fixture wires the full service graph against the in-memory fakes
type fixture struct {
	transactionRepo *fakeTransactionRepo
	membershipRepo  *fakeMembershipRepo
	tierStatusRepo  *fakeTierStatusRepo
	tierPolicyRepo  *fakeTierPolicyRepo
	tierCatalogRepo *fakeCustomerTierRepo
	outboxRepo      *fakeOutboxRepo

	balanceService    *BalanceProjectionService
	evaluationService *TierEvaluationService
	tierChangeService *TierChangeService
	pointsService     *PointsService
	adjustmentService *AdjustmentService
	reversalService   *ReversalService
	expirationService *ExpirationService
}

func newFixture(memberships []*domain.CustomerMembership, tiers []*domain.CustomerTier, policies []*domain.TierPolicy) *fixture {
	f := &fixture{
		transactionRepo: newFakeTransactionRepo(),
		membershipRepo:  newFakeMembershipRepo(memberships...),
		tierStatusRepo:  newFakeTierStatusRepo(),
		tierPolicyRepo:  newFakeTierPolicyRepo(policies...),
		tierCatalogRepo: newFakeCustomerTierRepo(tiers...),
		outboxRepo:      newFakeOutboxRepo(),
	}

	publisher := NewEventPublisher(f.outboxRepo)
	locker := lock.NewLocalLocker()

	f.balanceService = NewBalanceProjectionService(f.transactionRepo, f.membershipRepo)
	f.evaluationService = NewTierEvaluationService(f.transactionRepo, f.tierStatusRepo, f.tierPolicyRepo, f.tierCatalogRepo)
	f.tierChangeService = NewTierChangeService(f.evaluationService, f.membershipRepo, f.tierStatusRepo, f.tierPolicyRepo, f.tierCatalogRepo, publisher, locker)
	f.pointsService = NewPointsService(f.transactionRepo, f.membershipRepo, f.balanceService, f.tierChangeService, publisher, locker)
	f.adjustmentService = NewAdjustmentService(f.transactionRepo, f.membershipRepo, f.balanceService, f.tierChangeService, publisher, locker)
	f.reversalService = NewReversalService(f.transactionRepo, f.membershipRepo, f.balanceService, f.tierChangeService, publisher)
	f.expirationService = NewExpirationService(f.transactionRepo, f.membershipRepo, f.balanceService, publisher)

	return f
}

func activeMembership(id, tenantID uint) *domain.CustomerMembership {
	return &domain.CustomerMembership{
		ID:         id,
		UserID:     id + 100,
		TenantID:   tenantID,
		JoinedDate: time.Now().AddDate(0, -6, 0),
		Status:     domain.MembershipActive,
	}
}

func catalogTier(id, tenantID uint, name string, minPoints int64, maxPoints *int64, priority int) *domain.CustomerTier {
	return &domain.CustomerTier{
		ID:        id,
		TenantID:  tenantID,
		Name:      name,
		MinPoints: minPoints,
		MaxPoints: maxPoints,
		Priority:  priority,
		Status:    domain.TierActive,
	}
}

func int64Ptr(v int64) *int64 { return &v }
