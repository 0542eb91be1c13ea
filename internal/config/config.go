package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	AppMode  string
	Port     string
	Database DatabaseConfig
	JWT      JWTConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret          string
	AccessTokenMins int
}

// RedisConfig holds Redis configuration for the tier change lock
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds Kafka configuration for the outbox sender
type KafkaConfig struct {
	Enabled bool
	Brokers []string
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Get APP_MODE (default to "dev") - trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	// Build config based on APP_MODE
	config := &Config{
		AppMode:  appMode,
		Port:     getEnv("PORT", "3000"),
		Database: loadDatabaseConfig(appMode),
		JWT:      loadJWTConfig(appMode),
		Redis:    loadRedisConfig(appMode),
		Kafka:    loadKafkaConfig(appMode),
	}

	// Set global config
	AppConfig = config

	log.Printf("✅ Configuration loaded successfully [MODE: %s]", appMode)
	return config, nil
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	return DatabaseConfig{
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "loyaltyhub"),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	accessMins, _ := strconv.Atoi(getEnv("ACCESS_TOKEN_MINUTES", "15"))

	return JWTConfig{
		Secret:          getEnv(prefix+"JWT_SECRET", "default_secret"),
		AccessTokenMins: accessMins,
	}
}

// loadRedisConfig loads Redis config based on mode
func loadRedisConfig(mode string) RedisConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	enabled, _ := strconv.ParseBool(getEnv(prefix+"REDIS_ENABLED", "false"))
	db, _ := strconv.Atoi(getEnv(prefix+"REDIS_DB", "0"))

	return RedisConfig{
		Enabled:  enabled,
		Addr:     getEnv(prefix+"REDIS_ADDR", "localhost:6379"),
		Password: getEnv(prefix+"REDIS_PASS", ""),
		DB:       db,
	}
}

// loadKafkaConfig loads Kafka config based on mode
func loadKafkaConfig(mode string) KafkaConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	enabled, _ := strconv.ParseBool(getEnv(prefix+"KAFKA_ENABLED", "false"))
	brokers := strings.Split(getEnv(prefix+"KAFKA_BROKERS", "localhost:9092"), ",")

	return KafkaConfig{
		Enabled: enabled,
		Brokers: brokers,
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		// Default production origins
		return "https://loyalty.example.com"
	}
	return origins
}
