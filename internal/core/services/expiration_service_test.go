package services

import (
	"context"
	"testing"
	"time"

	"loyaltyhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expiredEarning(t *testing.T, f *fixture, membershipID uint, points int64, key string) *domain.PointsTransaction {
	t.Helper()
	expires := time.Now().Add(-time.Hour)
	tx, err := domain.NewEarning(1, membershipID+100, membershipID, points, key, &expires)
	require.NoError(t, err)
	tx.CreatedAt = time.Now().AddDate(0, -2, 0)
	saved, err := f.transactionRepo.Save(context.Background(), tx)
	require.NoError(t, err)
	_, err = f.balanceService.SyncAfterTransaction(context.Background(), membershipID)
	require.NoError(t, err)
	return saved
}

func TestProcessExpiredPointsWritesCompensatingRows(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	earning := expiredEarning(t, f, 1, 80, "e1")

	expired, err := f.expirationService.ProcessExpiredPoints(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, int64(0), f.membershipRepo.get(1).Points)

	rows, err := f.transactionRepo.ListByMembershipIDAndType(ctx, 1, domain.TxExpiration, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(-80), rows[0].PointsDelta)
	assert.Equal(t, earning.ID, rows[0].Metadata["expiredEarningId"])
	assert.Contains(t, f.outboxRepo.eventTypes(), EventPointsExpired)
}

func TestProcessExpiredPointsIsIdempotentAcrossSweeps(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	expiredEarning(t, f, 1, 80, "e1")

	expired, err := f.expirationService.ProcessExpiredPoints(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	// the second sweep sees the same earning but the deterministic key
	// blocks a second expiration row
	expired, err = f.expirationService.ProcessExpiredPoints(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	rows, err := f.transactionRepo.ListByMembershipIDAndType(ctx, 1, domain.TxExpiration, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExpirationCappedAtCurrentBalance(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	expiredEarning(t, f, 1, 80, "e1")

	// most of the earning was already spent
	_, err := f.pointsService.RedeemPoints(ctx, &RedeemPointsInput{MembershipID: 1, Points: 70, RewardID: 1})
	require.NoError(t, err)
	require.Equal(t, int64(10), f.membershipRepo.get(1).Points)

	expired, err := f.expirationService.ProcessExpiredPoints(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	// only the remaining 10 points expire, never more than the balance
	rows, err := f.transactionRepo.ListByMembershipIDAndType(ctx, 1, domain.TxExpiration, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(-10), rows[0].PointsDelta)
	assert.Equal(t, int64(0), f.membershipRepo.get(1).Points)
}
