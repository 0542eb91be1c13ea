package handlers

import (
	"loyaltyhub/internal/core/services"
	"loyaltyhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// TierHandler handles tier evaluation and tier change endpoints
type TierHandler struct {
	evaluationService *services.TierEvaluationService
	tierChangeService *services.TierChangeService
}

// NewTierHandler creates a new tier handler
func NewTierHandler(
	evaluationService *services.TierEvaluationService,
	tierChangeService *services.TierChangeService,
) *TierHandler {
	return &TierHandler{
		evaluationService: evaluationService,
		tierChangeService: tierChangeService,
	}
}

// ForceTierRequest represents a manual tier override body
type ForceTierRequest struct {
	TierID *uint `json:"tier_id"`
}

// Evaluate runs a dry-run tier evaluation
// @Summary Evaluate tier
// @Description Evaluate a membership against the tenant's active policy without applying changes
// @Tags Tiers
// @Produce json
// @Param id path int true "Membership ID"
// @Param tenantId query int true "Tenant ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /memberships/{id}/tier/evaluate [get]
func (h *TierHandler) Evaluate(c *fiber.Ctx) error {
	membershipID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership id")
	}
	tenantID, err := parseQueryID(c, "tenantId")
	if err != nil {
		return response.BadRequest(c, "Invalid tenant id")
	}

	result, err := h.evaluationService.EvaluateTier(c.Context(), membershipID, tenantID)
	if err != nil {
		return mapLedgerError(c, err)
	}

	return response.Success(c, "Tier evaluation", result)
}

// GetStatus returns the stored tier state for a membership
// @Summary Get tier status
// @Description Return the membership's current tier, grace period and next evaluation date
// @Tags Tiers
// @Produce json
// @Param id path int true "Membership ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /memberships/{id}/tier/status [get]
func (h *TierHandler) GetStatus(c *fiber.Ctx) error {
	membershipID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership id")
	}

	status, err := h.tierChangeService.GetTierStatus(c.Context(), membershipID)
	if err != nil {
		return mapLedgerError(c, err)
	}

	return response.Success(c, "Tier status", status)
}

// Apply evaluates and applies a tier change
// @Summary Apply tier change
// @Description Evaluate a membership and apply the resulting tier transition
// @Tags Tiers
// @Produce json
// @Param id path int true "Membership ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /memberships/{id}/tier/apply [post]
func (h *TierHandler) Apply(c *fiber.Ctx) error {
	membershipID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership id")
	}

	result, err := h.tierChangeService.EvaluateAndApplyTierChange(c.Context(), membershipID)
	if err != nil {
		return mapLedgerError(c, err)
	}

	return response.Success(c, "Tier change applied", result)
}

// ForceUpgrade writes a tier directly
// @Summary Force tier upgrade
// @Description Write a tier onto a membership, bypassing evaluation
// @Tags Tiers
// @Accept json
// @Produce json
// @Param id path int true "Membership ID"
// @Param tenantId query int true "Tenant ID"
// @Param body body ForceTierRequest true "Target tier"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /memberships/{id}/tier/force-upgrade [post]
func (h *TierHandler) ForceUpgrade(c *fiber.Ctx) error {
	membershipID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership id")
	}
	tenantID, err := parseQueryID(c, "tenantId")
	if err != nil {
		return response.BadRequest(c, "Invalid tenant id")
	}

	var req ForceTierRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.TierID == nil || *req.TierID == 0 {
		return response.BadRequest(c, "Tier id is required")
	}

	result, err := h.tierChangeService.ForceUpgrade(c.Context(), membershipID, *req.TierID, tenantID)
	if err != nil {
		return mapLedgerError(c, err)
	}

	return response.Success(c, "Tier upgraded", result)
}

// ForceDowngrade writes a lower tier (or clears the tier) directly
// @Summary Force tier downgrade
// @Description Write a lower tier (or none) onto a membership, bypassing evaluation
// @Tags Tiers
// @Accept json
// @Produce json
// @Param id path int true "Membership ID"
// @Param tenantId query int true "Tenant ID"
// @Param body body ForceTierRequest true "Target tier (null clears)"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /memberships/{id}/tier/force-downgrade [post]
func (h *TierHandler) ForceDowngrade(c *fiber.Ctx) error {
	membershipID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership id")
	}
	tenantID, err := parseQueryID(c, "tenantId")
	if err != nil {
		return response.BadRequest(c, "Invalid tenant id")
	}

	var req ForceTierRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.tierChangeService.ForceDowngrade(c.Context(), membershipID, req.TierID, tenantID)
	if err != nil {
		return mapLedgerError(c, err)
	}

	return response.Success(c, "Tier downgraded", result)
}

// ProcessGracePeriods runs the expired-grace sweep for a tenant
// @Summary Process expiring grace periods
// @Description Re-evaluate every membership whose grace period has lapsed
// @Tags Tiers
// @Produce json
// @Param tenantId path int true "Tenant ID"
// @Success 200 {object} response.Response
// @Router /tenants/{tenantId}/tiers/process-grace-periods [post]
func (h *TierHandler) ProcessGracePeriods(c *fiber.Ctx) error {
	tenantID, err := parseIDParam(c, "tenantId")
	if err != nil {
		return response.BadRequest(c, "Invalid tenant id")
	}

	results, err := h.tierChangeService.ProcessExpiringGracePeriods(c.Context(), tenantID)
	if err != nil {
		return response.InternalServerError(c, "Failed to process grace periods")
	}

	return response.Success(c, "Grace periods processed", fiber.Map{
		"processed": len(results),
		"results":   results,
	})
}

// ProcessPendingEvaluations runs the due-evaluation sweep for a tenant
// @Summary Process pending evaluations
// @Description Re-evaluate every membership whose next evaluation date has arrived
// @Tags Tiers
// @Produce json
// @Param tenantId path int true "Tenant ID"
// @Success 200 {object} response.Response
// @Router /tenants/{tenantId}/tiers/process-evaluations [post]
func (h *TierHandler) ProcessPendingEvaluations(c *fiber.Ctx) error {
	tenantID, err := parseIDParam(c, "tenantId")
	if err != nil {
		return response.BadRequest(c, "Invalid tenant id")
	}

	results, err := h.tierChangeService.ProcessPendingEvaluations(c.Context(), tenantID)
	if err != nil {
		return response.InternalServerError(c, "Failed to process evaluations")
	}

	return response.Success(c, "Evaluations processed", fiber.Map{
		"processed": len(results),
		"results":   results,
	})
}

// parseQueryID parses a positive uint query parameter
func parseQueryID(c *fiber.Ctx, name string) (uint, error) {
	return parseUintString(c.Query(name))
}
