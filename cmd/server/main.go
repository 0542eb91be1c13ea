package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"loyaltyhub/internal/adapters/http/middleware"
	"loyaltyhub/internal/adapters/http/routes"
	"loyaltyhub/internal/adapters/persistence/repositories"
	"loyaltyhub/internal/config"
	"loyaltyhub/internal/core/services"
	"loyaltyhub/internal/infrastructure/lock"
	"loyaltyhub/internal/infrastructure/mq"
	"loyaltyhub/internal/job"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	_ "loyaltyhub/docs" // Swagger docs
)

// @title LoyaltyHub API
// @version 1.0
// @description Customer loyalty points ledger and tier engine API
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@loyalty.example.com

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:3000
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer config.CloseDatabase()

	// Auto migrate (creates tables if not exist)
	if err := config.MigrateDatabase(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}

	// Seed demo tiers, policy and admin user
	if err := config.NewSeeder(db).Run(); err != nil {
		log.Printf("⚠️ Warning: Failed to seed data: %v", err)
	}

	// Per-membership tier change lock: Redis when available, otherwise
	// in-process (single instance deployments only)
	var locker lock.Locker
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		log.Println("✅ Redis connected")
		locker = lock.NewRedisLocker(redisClient)
	} else {
		log.Println("Redis disabled, using in-process membership locks")
		locker = lock.NewLocalLocker()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Outbox sender drains domain events to Kafka
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			log.Fatalf("❌ Failed to create Kafka producer: %v", err)
		}
		defer producer.Close()

		sender := job.NewOutboxSender(repositories.NewOutboxRepository(db), producer)
		go sender.Start(ctx)
		defer sender.Stop()
	} else {
		log.Println("Kafka disabled, outbox events stay pending")
	}

	// Scheduled tier and expiration sweeps
	cronService := buildCronService(db, locker)
	cronService.Start()
	defer cronService.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "LoyaltyHub API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes (pass db and cfg for dependency injection)
	routes.Setup(app, db, cfg, locker)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// buildCronService wires the repositories and services the scheduled
// sweeps need
func buildCronService(db *gorm.DB, locker lock.Locker) *services.CronService {
	transactionRepo := repositories.NewPointsTransactionRepository(db)
	membershipRepo := repositories.NewMembershipRepository(db)
	tierStatusRepo := repositories.NewTierStatusRepository(db)
	tierPolicyRepo := repositories.NewTierPolicyRepository(db)
	customerTierRepo := repositories.NewCustomerTierRepository(db)
	outboxRepo := repositories.NewOutboxRepository(db)

	publisher := services.NewEventPublisher(outboxRepo)
	balanceService := services.NewBalanceProjectionService(transactionRepo, membershipRepo)
	evaluationService := services.NewTierEvaluationService(transactionRepo, tierStatusRepo, tierPolicyRepo, customerTierRepo)
	tierChangeService := services.NewTierChangeService(evaluationService, membershipRepo, tierStatusRepo, tierPolicyRepo, customerTierRepo, publisher, locker)
	expirationService := services.NewExpirationService(transactionRepo, membershipRepo, balanceService, publisher)

	return services.NewCronService(membershipRepo, tierChangeService, expirationService)
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}
