package services

import (
	"context"
	"testing"

	"loyaltyhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEarnPointsAppendsAndSyncsBalance(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	tx, err := f.pointsService.EarnPoints(ctx, &EarnPointsInput{
		MembershipID: 1,
		Points:       120,
		Amount:       45.50,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxEarning, tx.Type)
	assert.Equal(t, int64(120), tx.PointsDelta)
	assert.Equal(t, 45.50, tx.Metadata["amount"])

	assert.Equal(t, int64(120), f.membershipRepo.get(1).Points)
	assert.Contains(t, f.outboxRepo.eventTypes(), EventPointsEarned)
}

func TestEarnPointsRejectsInactiveMembership(t *testing.T) {
	m := activeMembership(1, 1)
	m.Status = domain.MembershipInactive
	f := newFixture([]*domain.CustomerMembership{m}, nil, nil)

	_, err := f.pointsService.EarnPoints(context.Background(), &EarnPointsInput{MembershipID: 1, Points: 10})
	assert.ErrorIs(t, err, domain.ErrMembershipInactive)
	assert.Zero(t, f.transactionRepo.count())
}

func TestEarnPointsRejectsDuplicateIdempotencyKey(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	input := &EarnPointsInput{MembershipID: 1, Points: 10, IdempotencyKey: "order-555"}
	_, err := f.pointsService.EarnPoints(ctx, input)
	require.NoError(t, err)

	_, err = f.pointsService.EarnPoints(ctx, input)
	assert.ErrorIs(t, err, domain.ErrDuplicateIdempotencyKey)
	assert.Equal(t, 1, f.transactionRepo.count())
	assert.Equal(t, int64(10), f.membershipRepo.get(1).Points)
}

func TestRedeemPointsHappyPath(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	_, err := f.pointsService.EarnPoints(ctx, &EarnPointsInput{MembershipID: 1, Points: 200})
	require.NoError(t, err)

	tx, err := f.pointsService.RedeemPoints(ctx, &RedeemPointsInput{MembershipID: 1, Points: 80, RewardID: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(-80), tx.PointsDelta)
	assert.Equal(t, int64(120), f.membershipRepo.get(1).Points)

	redemptions, err := f.pointsService.GetRewardRedemptions(ctx, 1, 7)
	require.NoError(t, err)
	require.Len(t, redemptions, 1)
	assert.Equal(t, tx.ID, redemptions[0].ID)
}

func TestRedeemPointsInsufficientBalanceWritesNothing(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	_, err := f.pointsService.EarnPoints(ctx, &EarnPointsInput{MembershipID: 1, Points: 50})
	require.NoError(t, err)

	_, err = f.pointsService.RedeemPoints(ctx, &RedeemPointsInput{MembershipID: 1, Points: 51, RewardID: 7})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// only the earning row exists and the balance is untouched
	assert.Equal(t, 1, f.transactionRepo.count())
	assert.Equal(t, int64(50), f.membershipRepo.get(1).Points)
}

func TestGetTransactionHistoryNewestFirst(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.pointsService.EarnPoints(ctx, &EarnPointsInput{MembershipID: 1, Points: int64(10 * (i + 1))})
		require.NoError(t, err)
	}

	history, err := f.pointsService.GetTransactionHistory(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(30), history[0].PointsDelta)
	assert.Equal(t, int64(20), history[1].PointsDelta)

	_, err = f.pointsService.GetTransactionHistory(ctx, 99, 10)
	assert.ErrorIs(t, err, domain.ErrMembershipNotFound)
}
