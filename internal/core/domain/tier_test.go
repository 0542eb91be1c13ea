package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierPolicyDowngradeHelpers(t *testing.T) {
	grace := &TierPolicy{DowngradeStrategy: DowngradeGracePeriod, GracePeriodDays: 30}
	assert.True(t, grace.AllowsDowngrade())
	assert.True(t, grace.UsesGracePeriod())

	// grace strategy without days behaves like immediate
	zeroDays := &TierPolicy{DowngradeStrategy: DowngradeGracePeriod, GracePeriodDays: 0}
	assert.True(t, zeroDays.AllowsDowngrade())
	assert.False(t, zeroDays.UsesGracePeriod())

	never := &TierPolicy{DowngradeStrategy: DowngradeNever}
	assert.False(t, never.AllowsDowngrade())
	assert.False(t, never.UsesGracePeriod())

	immediate := &TierPolicy{DowngradeStrategy: DowngradeImmediate, GracePeriodDays: 30}
	assert.True(t, immediate.AllowsDowngrade())
	assert.False(t, immediate.UsesGracePeriod())
}

func TestTierPolicyTiersOrderedByPoints(t *testing.T) {
	policy := &TierPolicy{Thresholds: map[uint]int64{3: 500, 1: 0, 2: 100}}
	assert.Equal(t, []uint{1, 2, 3}, policy.TiersOrderedByPoints())

	pts, ok := policy.MinPointsForTier(2)
	assert.True(t, ok)
	assert.Equal(t, int64(100), pts)

	_, ok = policy.MinPointsForTier(9)
	assert.False(t, ok)
}

func TestNewTierStatusRejectsGraceBeforeSince(t *testing.T) {
	since := time.Now()
	grace := since.Add(-time.Hour)
	_, err := NewTierStatus(1, nil, since, &grace, nil)
	assert.ErrorIs(t, err, ErrGraceBeforeSince)
}

func TestTierStatusUpgradeClearsGrace(t *testing.T) {
	grace := time.Now().Add(48 * time.Hour)
	tierID := uint(1)
	status := &TierStatus{
		MembershipID:  100,
		CurrentTierID: &tierID,
		Since:         time.Now().AddDate(0, -2, 0),
		GraceUntil:    &grace,
	}
	require.True(t, status.IsInGracePeriod())

	nextEval := time.Now().AddDate(0, 1, 0)
	upgraded := status.Upgrade(2, &nextEval)
	assert.Equal(t, uint(2), *upgraded.CurrentTierID)
	assert.Nil(t, upgraded.GraceUntil)
	assert.False(t, upgraded.IsInGracePeriod())
	assert.True(t, upgraded.Since.After(status.Since))
}

func TestTierStatusStartGracePeriod(t *testing.T) {
	tierID := uint(2)
	since := time.Now().AddDate(0, -3, 0)
	status := &TierStatus{MembershipID: 100, CurrentTierID: &tierID, Since: since}

	graceUntil := time.Now().AddDate(0, 0, 30)
	deferred := status.StartGracePeriod(graceUntil)

	// the tier itself does not move while grace runs
	assert.Equal(t, tierID, *deferred.CurrentTierID)
	assert.Equal(t, since, deferred.Since)
	require.NotNil(t, deferred.GraceUntil)
	assert.Equal(t, graceUntil, *deferred.GraceUntil)
	require.NotNil(t, deferred.NextEvalAt)
	assert.Equal(t, graceUntil, *deferred.NextEvalAt)
	assert.True(t, deferred.IsInGracePeriod())
}

func TestTierStatusDowngradeClearsGrace(t *testing.T) {
	tierID := uint(3)
	grace := time.Now().Add(-time.Hour)
	status := &TierStatus{MembershipID: 100, CurrentTierID: &tierID, Since: time.Now().AddDate(0, -4, 0), GraceUntil: &grace}

	lower := uint(2)
	nextEval := time.Now().AddDate(0, 1, 0)
	downgraded := status.Downgrade(&lower, &nextEval)
	assert.Equal(t, lower, *downgraded.CurrentTierID)
	assert.Nil(t, downgraded.GraceUntil)

	// downgrading out of the lowest tier clears it entirely
	cleared := status.Downgrade(nil, &nextEval)
	assert.Nil(t, cleared.CurrentTierID)
}

func TestCustomerTierContainsPoints(t *testing.T) {
	max := int64(499)
	silver := &CustomerTier{MinPoints: 100, MaxPoints: &max}
	assert.False(t, silver.ContainsPoints(99))
	assert.True(t, silver.ContainsPoints(100))
	assert.True(t, silver.ContainsPoints(499))
	assert.False(t, silver.ContainsPoints(500))

	gold := &CustomerTier{MinPoints: 500, MaxPoints: nil}
	assert.True(t, gold.ContainsPoints(500))
	assert.True(t, gold.ContainsPoints(1_000_000))
	assert.False(t, gold.ContainsPoints(499))
}
