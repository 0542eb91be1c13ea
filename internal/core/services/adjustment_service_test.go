package services

import (
	"context"
	"testing"

	"loyaltyhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAdjustmentAddsPoints(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	tx, err := f.adjustmentService.CreateAdjustment(ctx, &CreateAdjustmentInput{
		MembershipID: 1,
		PointsDelta:  150,
		ReasonCode:   "GOODWILL",
		CreatedBy:    "alice",
		Notes:        "service outage compensation",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxAdjustment, tx.Type)
	assert.Equal(t, "ADD", tx.Metadata["adjustmentType"])
	assert.Equal(t, int64(0), tx.Metadata["previousBalance"])
	assert.Equal(t, "service outage compensation", tx.Metadata["notes"])

	assert.Equal(t, int64(150), f.membershipRepo.get(1).Points)
	assert.Contains(t, f.outboxRepo.eventTypes(), EventAdjustmentCreated)
}

func TestCreateAdjustmentRequiresHumanActor(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	for _, createdBy := range []string{"", domain.CreatedBySystem} {
		_, err := f.adjustmentService.CreateAdjustment(ctx, &CreateAdjustmentInput{
			MembershipID: 1,
			PointsDelta:  10,
			ReasonCode:   "GOODWILL",
			CreatedBy:    createdBy,
		})
		assert.ErrorIs(t, err, domain.ErrSystemActor)
	}
	assert.Zero(t, f.transactionRepo.count())
}

func TestCreateAdjustmentValidation(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	_, err := f.adjustmentService.CreateAdjustment(ctx, &CreateAdjustmentInput{
		MembershipID: 1, PointsDelta: 10, CreatedBy: "alice",
	})
	assert.ErrorIs(t, err, domain.ErrReasonCodeRequired)

	_, err = f.adjustmentService.CreateAdjustment(ctx, &CreateAdjustmentInput{
		MembershipID: 1, PointsDelta: 0, ReasonCode: "GOODWILL", CreatedBy: "alice",
	})
	assert.ErrorIs(t, err, domain.ErrAdjustmentDeltaZero)

	_, err = f.adjustmentService.CreateAdjustment(ctx, &CreateAdjustmentInput{
		MembershipID: 99, PointsDelta: 10, ReasonCode: "GOODWILL", CreatedBy: "alice",
	})
	assert.ErrorIs(t, err, domain.ErrMembershipNotFound)

	assert.Zero(t, f.transactionRepo.count())
}

func TestCreateAdjustmentNeverPushesBalanceNegative(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	_, err := f.pointsService.EarnPoints(ctx, &EarnPointsInput{MembershipID: 1, Points: 40})
	require.NoError(t, err)

	_, err = f.adjustmentService.CreateAdjustment(ctx, &CreateAdjustmentInput{
		MembershipID: 1, PointsDelta: -41, ReasonCode: "CORRECTION", CreatedBy: "alice",
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, 1, f.transactionRepo.count())
	assert.Equal(t, int64(40), f.membershipRepo.get(1).Points)

	// subtracting exactly the balance is allowed
	tx, err := f.adjustmentService.CreateAdjustment(ctx, &CreateAdjustmentInput{
		MembershipID: 1, PointsDelta: -40, ReasonCode: "CORRECTION", CreatedBy: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "SUBTRACT", tx.Metadata["adjustmentType"])
	assert.Equal(t, int64(40), tx.Metadata["previousBalance"])
	assert.Equal(t, int64(0), f.membershipRepo.get(1).Points)
}

func TestGetAdjustmentHistoryFiltersType(t *testing.T) {
	f := newFixture([]*domain.CustomerMembership{activeMembership(1, 1)}, nil, nil)
	ctx := context.Background()

	_, err := f.pointsService.EarnPoints(ctx, &EarnPointsInput{MembershipID: 1, Points: 100})
	require.NoError(t, err)
	_, err = f.adjustmentService.CreateAdjustment(ctx, &CreateAdjustmentInput{
		MembershipID: 1, PointsDelta: -10, ReasonCode: "CORRECTION", CreatedBy: "alice",
	})
	require.NoError(t, err)

	history, err := f.adjustmentService.GetAdjustmentHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.TxAdjustment, history[0].Type)
}
