package services

import (
	"context"
	"testing"

	"loyaltyhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReversalNegatesEarning(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	earning, err := f.pointsService.EarnPoints(ctx, &EarnPointsInput{MembershipID: 1, Points: 90})
	require.NoError(t, err)

	reversal, err := f.reversalService.CreateReversal(ctx, &CreateReversalInput{
		TransactionID: earning.ID,
		ReasonCode:    "FRAUD",
		CreatedBy:     "bob",
		Metadata:      domain.Metadata{"caseId": "C-100"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxReversal, reversal.Type)
	assert.Equal(t, int64(-90), reversal.PointsDelta)
	require.NotNil(t, reversal.ReversalOfTransactionID)
	assert.Equal(t, earning.ID, *reversal.ReversalOfTransactionID)
	assert.Equal(t, int64(90), reversal.Metadata["originalPointsDelta"])
	assert.Equal(t, string(domain.TxEarning), reversal.Metadata["originalTransactionType"])
	assert.Equal(t, "C-100", reversal.Metadata["caseId"])

	assert.Equal(t, int64(0), f.membershipRepo.get(1).Points)
	assert.Contains(t, f.outboxRepo.eventTypes(), EventReversalCreated)
}

func TestCreateReversalRestoresRedeemedPoints(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	_, err := f.pointsService.EarnPoints(ctx, &EarnPointsInput{MembershipID: 1, Points: 200})
	require.NoError(t, err)
	redeem, err := f.pointsService.RedeemPoints(ctx, &RedeemPointsInput{MembershipID: 1, Points: 120, RewardID: 3})
	require.NoError(t, err)
	require.Equal(t, int64(80), f.membershipRepo.get(1).Points)

	reversal, err := f.reversalService.CreateReversal(ctx, &CreateReversalInput{
		TransactionID: redeem.ID,
		ReasonCode:    "REWARD_OUT_OF_STOCK",
		CreatedBy:     "bob",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(120), reversal.PointsDelta)
	assert.Equal(t, int64(200), f.membershipRepo.get(1).Points)
}

func TestCreateReversalRejectsFinalTypes(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	adjustment, err := f.adjustmentService.CreateAdjustment(ctx, &CreateAdjustmentInput{
		MembershipID: 1, PointsDelta: 50, ReasonCode: "GOODWILL", CreatedBy: "alice",
	})
	require.NoError(t, err)

	_, err = f.reversalService.CreateReversal(ctx, &CreateReversalInput{
		TransactionID: adjustment.ID, ReasonCode: "MISTAKE", CreatedBy: "bob",
	})
	assert.ErrorIs(t, err, domain.ErrNotReversible)
}

func TestCreateReversalOnlyOnce(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	earning, err := f.pointsService.EarnPoints(ctx, &EarnPointsInput{MembershipID: 1, Points: 60})
	require.NoError(t, err)

	_, err = f.reversalService.CreateReversal(ctx, &CreateReversalInput{
		TransactionID: earning.ID, ReasonCode: "FRAUD", CreatedBy: "bob",
	})
	require.NoError(t, err)

	_, err = f.reversalService.CreateReversal(ctx, &CreateReversalInput{
		TransactionID: earning.ID, ReasonCode: "FRAUD", CreatedBy: "bob",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyReversed)

	reversed, err := f.reversalService.IsReversed(ctx, earning.ID)
	require.NoError(t, err)
	assert.True(t, reversed)
}

func TestCreateReversalUnknownTransaction(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)

	_, err := f.reversalService.CreateReversal(context.Background(), &CreateReversalInput{
		TransactionID: 999, ReasonCode: "FRAUD", CreatedBy: "bob",
	})
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestReversingEarningTriggersTierReEvaluation(t *testing.T) {
	tiers := []*domain.CustomerTier{
		catalogTier(1, 1, "Bronze", 0, int64Ptr(99), 1),
		catalogTier(2, 1, "Silver", 100, nil, 2),
	}
	policy := &domain.TierPolicy{
		TenantID:          1,
		EvaluationWindow:  domain.WindowRolling30,
		EvaluationType:    domain.EvaluationRolling,
		Thresholds:        map[uint]int64{1: 0, 2: 100},
		DowngradeStrategy: domain.DowngradeImmediate,
		Status:            domain.PolicyActive,
	}
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, tiers, []*domain.TierPolicy{policy})
	ctx := context.Background()

	earning, err := f.pointsService.EarnPoints(ctx, &EarnPointsInput{MembershipID: 1, Points: 150})
	require.NoError(t, err)
	require.Equal(t, uint(2), *f.membershipRepo.get(1).TierID)

	_, err = f.reversalService.CreateReversal(ctx, &CreateReversalInput{
		TransactionID: earning.ID, ReasonCode: "FRAUD", CreatedBy: "bob",
	})
	require.NoError(t, err)

	// losing the reversed points drops the member back to the base tier
	assert.Equal(t, uint(1), *f.membershipRepo.get(1).TierID)
}

func TestGetReversalChain(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	earning, err := f.pointsService.EarnPoints(ctx, &EarnPointsInput{MembershipID: 1, Points: 70})
	require.NoError(t, err)
	reversal, err := f.reversalService.CreateReversal(ctx, &CreateReversalInput{
		TransactionID: earning.ID, ReasonCode: "FRAUD", CreatedBy: "bob",
	})
	require.NoError(t, err)

	chain, err := f.reversalService.GetReversalChain(ctx, earning.ID)
	require.NoError(t, err)
	assert.Equal(t, earning.ID, chain.Original.ID)
	require.Len(t, chain.Reversals, 1)
	assert.Equal(t, reversal.ID, chain.Reversals[0].ID)
}
