package routes

import (
	"time"

	"loyaltyhub/internal/adapters/http/handlers"
	"loyaltyhub/internal/adapters/http/middleware"
	"loyaltyhub/internal/adapters/persistence/repositories"
	"loyaltyhub/internal/config"
	"loyaltyhub/internal/core/services"
	"loyaltyhub/internal/infrastructure/lock"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Setup configures all routes for the application
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config, locker lock.Locker) {
	// Initialize repositories
	transactionRepo := repositories.NewPointsTransactionRepository(db)
	membershipRepo := repositories.NewMembershipRepository(db)
	tierStatusRepo := repositories.NewTierStatusRepository(db)
	tierPolicyRepo := repositories.NewTierPolicyRepository(db)
	customerTierRepo := repositories.NewCustomerTierRepository(db)
	staffRepo := repositories.NewStaffUserRepository(db)
	outboxRepo := repositories.NewOutboxRepository(db)

	// Initialize services
	publisher := services.NewEventPublisher(outboxRepo)
	balanceService := services.NewBalanceProjectionService(transactionRepo, membershipRepo)
	evaluationService := services.NewTierEvaluationService(transactionRepo, tierStatusRepo, tierPolicyRepo, customerTierRepo)
	tierChangeService := services.NewTierChangeService(evaluationService, membershipRepo, tierStatusRepo, tierPolicyRepo, customerTierRepo, publisher, locker)
	pointsService := services.NewPointsService(transactionRepo, membershipRepo, balanceService, tierChangeService, publisher, locker)
	adjustmentService := services.NewAdjustmentService(transactionRepo, membershipRepo, balanceService, tierChangeService, publisher, locker)
	reversalService := services.NewReversalService(transactionRepo, membershipRepo, balanceService, tierChangeService, publisher)
	authService := services.NewAuthService(staffRepo, cfg)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(authService)
	pointsHandler := handlers.NewPointsHandler(pointsService, adjustmentService, reversalService, balanceService)
	tierHandler := handlers.NewTierHandler(evaluationService, tierChangeService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	setupAPIV1Routes(apiV1, authHandler, pointsHandler, tierHandler, cfg)
}

// setupAPIV1Routes configures API v1 routes
func setupAPIV1Routes(
	router fiber.Router,
	authHandler *handlers.AuthHandler,
	pointsHandler *handlers.PointsHandler,
	tierHandler *handlers.TierHandler,
	cfg *config.Config,
) {
	// Auth routes (public, rate limited)
	auth := router.Group("/auth")
	auth.Post("/login", middleware.AuthRateLimiter(), authHandler.Login)

	// Everything below requires a staff token
	authed := router.Group("", middleware.AuthMiddleware(cfg))

	// Membership points routes
	memberships := authed.Group("/memberships")
	memberships.Get("/:id", pointsHandler.GetMembership)
	memberships.Post("/:id/points/earn", middleware.OfficerOrAdmin(), pointsHandler.Earn)
	memberships.Post("/:id/points/redeem", middleware.OfficerOrAdmin(), pointsHandler.Redeem)
	memberships.Get("/:id/points/balance", middleware.NoCacheHeaders(), pointsHandler.GetBalance)
	memberships.Get("/:id/points/transactions", middleware.NoCacheHeaders(), pointsHandler.GetHistory)
	memberships.Post("/:id/points/recalculate", middleware.AdminOnly(), pointsHandler.RecalculateBalance)

	// Adjustments (sensitive, stricter limit)
	memberships.Post("/:id/adjustments", middleware.OfficerOrAdmin(), middleware.StrictRateLimiter(), pointsHandler.CreateAdjustment)
	memberships.Get("/:id/adjustments", middleware.PrivateCacheHeaders(30*time.Second), pointsHandler.GetAdjustmentHistory)

	// Tier routes
	memberships.Get("/:id/tier/evaluate", tierHandler.Evaluate)
	memberships.Get("/:id/tier/status", tierHandler.GetStatus)
	memberships.Post("/:id/tier/apply", tierHandler.Apply)
	memberships.Post("/:id/tier/force-upgrade", middleware.AdminOnly(), middleware.StrictRateLimiter(), tierHandler.ForceUpgrade)
	memberships.Post("/:id/tier/force-downgrade", middleware.AdminOnly(), middleware.StrictRateLimiter(), tierHandler.ForceDowngrade)

	// Reversals
	transactions := authed.Group("/transactions")
	transactions.Post("/:id/reversal", middleware.StrictRateLimiter(), pointsHandler.CreateReversal)
	transactions.Get("/:id/reversal-chain", pointsHandler.GetReversalChain)

	// Tenant-level batch operations (admin only)
	tenants := authed.Group("/tenants", middleware.AdminOnly())
	tenants.Get("/:tenantId/points/integrity", pointsHandler.ValidateIntegrity)
	tenants.Post("/:tenantId/tiers/process-grace-periods", tierHandler.ProcessGracePeriods)
	tenants.Post("/:tenantId/tiers/process-evaluations", tierHandler.ProcessPendingEvaluations)
}
