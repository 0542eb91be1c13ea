package handlers

import (
	"errors"
	"strconv"

	"loyaltyhub/internal/core/domain"
	"loyaltyhub/internal/core/services"
	"loyaltyhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// PointsHandler handles ledger, balance, adjustment and reversal endpoints
type PointsHandler struct {
	pointsService     *services.PointsService
	adjustmentService *services.AdjustmentService
	reversalService   *services.ReversalService
	balanceService    *services.BalanceProjectionService
}

// NewPointsHandler creates a new points handler
func NewPointsHandler(
	pointsService *services.PointsService,
	adjustmentService *services.AdjustmentService,
	reversalService *services.ReversalService,
	balanceService *services.BalanceProjectionService,
) *PointsHandler {
	return &PointsHandler{
		pointsService:     pointsService,
		adjustmentService: adjustmentService,
		reversalService:   reversalService,
		balanceService:    balanceService,
	}
}

// EarnRequest represents earn points request body
type EarnRequest struct {
	Points         int64           `json:"points"`
	Amount         float64         `json:"amount,omitempty"`
	ProgramID      *uint           `json:"program_id,omitempty"`
	RewardRuleID   *uint           `json:"reward_rule_id,omitempty"`
	BranchID       *uint           `json:"branch_id,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	ExpiresInDays  int             `json:"expires_in_days,omitempty"`
	Metadata       domain.Metadata `json:"metadata,omitempty"`
}

// RedeemRequest represents redeem points request body
type RedeemRequest struct {
	Points         int64  `json:"points"`
	RewardID       uint   `json:"reward_id"`
	BranchID       *uint  `json:"branch_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// AdjustmentRequest represents adjustment request body
type AdjustmentRequest struct {
	PointsDelta int64           `json:"points_delta"`
	ReasonCode  string          `json:"reason_code"`
	BranchID    *uint           `json:"branch_id,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	Metadata    domain.Metadata `json:"metadata,omitempty"`
}

// ReversalRequest represents reversal request body
type ReversalRequest struct {
	ReasonCode string          `json:"reason_code"`
	Metadata   domain.Metadata `json:"metadata,omitempty"`
}

// Earn handles earning points
// @Summary Earn points
// @Description Append an EARNING transaction to the membership ledger
// @Tags Points
// @Accept json
// @Produce json
// @Param id path int true "Membership ID"
// @Param body body EarnRequest true "Earning data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /memberships/{id}/points/earn [post]
func (h *PointsHandler) Earn(c *fiber.Ctx) error {
	membershipID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership id")
	}

	var req EarnRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Points <= 0 {
		return response.BadRequest(c, "Points must be positive")
	}

	tx, err := h.pointsService.EarnPoints(c.Context(), &services.EarnPointsInput{
		MembershipID:   membershipID,
		Points:         req.Points,
		Amount:         req.Amount,
		ProgramID:      req.ProgramID,
		RewardRuleID:   req.RewardRuleID,
		BranchID:       req.BranchID,
		IdempotencyKey: req.IdempotencyKey,
		ExpiresInDays:  req.ExpiresInDays,
		Metadata:       req.Metadata,
	})
	if err != nil {
		return mapLedgerError(c, err)
	}

	return response.Created(c, "Points earned", tx)
}

// Redeem handles redeeming points
// @Summary Redeem points
// @Description Append a REDEEM transaction after verifying the balance
// @Tags Points
// @Accept json
// @Produce json
// @Param id path int true "Membership ID"
// @Param body body RedeemRequest true "Redemption data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /memberships/{id}/points/redeem [post]
func (h *PointsHandler) Redeem(c *fiber.Ctx) error {
	membershipID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership id")
	}

	var req RedeemRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Points <= 0 {
		return response.BadRequest(c, "Points must be positive")
	}
	if req.RewardID == 0 {
		return response.BadRequest(c, "Reward id is required")
	}

	tx, err := h.pointsService.RedeemPoints(c.Context(), &services.RedeemPointsInput{
		MembershipID:   membershipID,
		Points:         req.Points,
		RewardID:       req.RewardID,
		BranchID:       req.BranchID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return mapLedgerError(c, err)
	}

	return response.Created(c, "Points redeemed", tx)
}

// GetBalance returns the ledger-derived balance
// @Summary Get points balance
// @Description Return the authoritative ledger balance of a membership
// @Tags Points
// @Produce json
// @Param id path int true "Membership ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /memberships/{id}/points/balance [get]
func (h *PointsHandler) GetBalance(c *fiber.Ctx) error {
	membershipID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership id")
	}

	balance, err := h.balanceService.CalculateMembershipBalance(c.Context(), membershipID)
	if err != nil {
		return mapLedgerError(c, err)
	}

	return response.Success(c, "Balance", fiber.Map{
		"membership_id": membershipID,
		"balance":       balance,
	})
}

// GetMembership returns a membership with its projected balance
// @Summary Get membership
// @Description Return a membership and its projected points balance
// @Tags Points
// @Produce json
// @Param id path int true "Membership ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /memberships/{id} [get]
func (h *PointsHandler) GetMembership(c *fiber.Ctx) error {
	membershipID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership id")
	}

	membership, err := h.pointsService.GetMembership(c.Context(), membershipID)
	if err != nil {
		return mapLedgerError(c, err)
	}

	return response.Success(c, "Membership", membership)
}

// GetHistory lists the membership's ledger rows
// @Summary Get transaction history
// @Description List ledger transactions for a membership, newest first
// @Tags Points
// @Produce json
// @Param id path int true "Membership ID"
// @Param limit query int false "Max rows (default 100)"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /memberships/{id}/points/transactions [get]
func (h *PointsHandler) GetHistory(c *fiber.Ctx) error {
	membershipID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership id")
	}
	limit, _ := strconv.Atoi(c.Query("limit", "100"))

	transactions, err := h.pointsService.GetTransactionHistory(c.Context(), membershipID, limit)
	if err != nil {
		return mapLedgerError(c, err)
	}

	return response.Success(c, "Transaction history", transactions)
}

// CreateAdjustment handles manual adjustments
// @Summary Create adjustment
// @Description Append a manual ADJUSTMENT transaction
// @Tags Adjustments
// @Accept json
// @Produce json
// @Param id path int true "Membership ID"
// @Param body body AdjustmentRequest true "Adjustment data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /memberships/{id}/adjustments [post]
func (h *PointsHandler) CreateAdjustment(c *fiber.Ctx) error {
	membershipID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership id")
	}

	var req AdjustmentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	createdBy, _ := c.Locals("username").(string)

	tx, err := h.adjustmentService.CreateAdjustment(c.Context(), &services.CreateAdjustmentInput{
		MembershipID: membershipID,
		PointsDelta:  req.PointsDelta,
		ReasonCode:   req.ReasonCode,
		CreatedBy:    createdBy,
		BranchID:     req.BranchID,
		Notes:        req.Notes,
		Metadata:     req.Metadata,
	})
	if err != nil {
		return mapLedgerError(c, err)
	}

	return response.Created(c, "Adjustment created", tx)
}

// GetAdjustmentHistory lists recent adjustments
// @Summary Get adjustment history
// @Description List the most recent adjustments for a membership
// @Tags Adjustments
// @Produce json
// @Param id path int true "Membership ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /memberships/{id}/adjustments [get]
func (h *PointsHandler) GetAdjustmentHistory(c *fiber.Ctx) error {
	membershipID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership id")
	}

	adjustments, err := h.adjustmentService.GetAdjustmentHistory(c.Context(), membershipID)
	if err != nil {
		return mapLedgerError(c, err)
	}

	return response.Success(c, "Adjustment history", adjustments)
}

// CreateReversal reverses a transaction
// @Summary Reverse a transaction
// @Description Append a REVERSAL transaction negating the original
// @Tags Reversals
// @Accept json
// @Produce json
// @Param id path int true "Transaction ID"
// @Param body body ReversalRequest true "Reversal data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /transactions/{id}/reversal [post]
func (h *PointsHandler) CreateReversal(c *fiber.Ctx) error {
	transactionID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid transaction id")
	}

	var req ReversalRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	createdBy, _ := c.Locals("username").(string)

	tx, err := h.reversalService.CreateReversal(c.Context(), &services.CreateReversalInput{
		TransactionID: transactionID,
		ReasonCode:    req.ReasonCode,
		CreatedBy:     createdBy,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return mapLedgerError(c, err)
	}

	return response.Created(c, "Transaction reversed", tx)
}

// GetReversalChain returns a transaction with its reversals
// @Summary Get reversal chain
// @Description Return the original transaction and any reversal of it
// @Tags Reversals
// @Produce json
// @Param id path int true "Transaction ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /transactions/{id}/reversal-chain [get]
func (h *PointsHandler) GetReversalChain(c *fiber.Ctx) error {
	transactionID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid transaction id")
	}

	chain, err := h.reversalService.GetReversalChain(c.Context(), transactionID)
	if err != nil {
		return mapLedgerError(c, err)
	}

	return response.Success(c, "Reversal chain", chain)
}

// RecalculateBalance rebuilds the cached balance from the ledger
// @Summary Recalculate balance
// @Description Rebuild the cached membership balance from the ledger
// @Tags Points
// @Produce json
// @Param id path int true "Membership ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /memberships/{id}/points/recalculate [post]
func (h *PointsHandler) RecalculateBalance(c *fiber.Ctx) error {
	membershipID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership id")
	}

	balance, err := h.balanceService.RecalculateBalance(c.Context(), membershipID)
	if err != nil {
		return mapLedgerError(c, err)
	}

	return response.Success(c, "Balance recalculated", fiber.Map{
		"membership_id": membershipID,
		"balance":       balance,
	})
}

// ValidateIntegrity reports memberships whose cached balance drifted
// @Summary Validate balance integrity
// @Description Compare cached balances against ledger sums for a tenant
// @Tags Points
// @Produce json
// @Param tenantId path int true "Tenant ID"
// @Success 200 {object} response.Response
// @Router /tenants/{tenantId}/points/integrity [get]
func (h *PointsHandler) ValidateIntegrity(c *fiber.Ctx) error {
	tenantID, err := parseIDParam(c, "tenantId")
	if err != nil {
		return response.BadRequest(c, "Invalid tenant id")
	}

	drift, err := h.balanceService.ValidateBalanceIntegrity(c.Context(), tenantID)
	if err != nil {
		return response.InternalServerError(c, "Failed to validate balances")
	}

	return response.Success(c, "Integrity report", fiber.Map{
		"tenant_id": tenantID,
		"drifted":   len(drift),
		"reports":   drift,
	})
}

// parseIDParam parses a positive uint path parameter
func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	return parseUintString(c.Params(name))
}

func parseUintString(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

// mapLedgerError maps domain errors to HTTP responses
func mapLedgerError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrMembershipNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrTierNotFound),
		errors.Is(err, domain.ErrNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrDuplicateIdempotencyKey),
		errors.Is(err, domain.ErrAlreadyReversed):
		return response.Conflict(c, err.Error())
	case errors.Is(err, domain.ErrSystemActor):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrNotReversible),
		errors.Is(err, domain.ErrAdjustmentDeltaZero),
		errors.Is(err, domain.ErrReasonCodeRequired),
		errors.Is(err, domain.ErrEarningDeltaNotPositive),
		errors.Is(err, domain.ErrRedeemDeltaNotNegative),
		errors.Is(err, domain.ErrRedeemRewardRequired),
		errors.Is(err, domain.ErrMembershipInactive):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrTierPolicyMissing):
		return response.NotFound(c, err.Error())
	default:
		return response.InternalServerError(c, "Operation failed")
	}
}
