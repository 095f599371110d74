package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	DBUrl                 string
	JWTSecret             string
	AppEnv                string
	CORSOrigins           string
	PayMongoSecretKey     string
	PayMongoAPIURL        string
	PayMongoTimeout       time.Duration
	PayMongoWebhookSecret string
	PayMongoBreakerFails  uint32
	PayMongoBreakerReset  time.Duration
	RedisURL              string
	WebhookEventTTL       time.Duration
	TrainingTimezone      string
	LogLevel              string
	LogFormat             string
	LogFile               string
	LogCaller             bool
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		Port:                  getEnv("PORT", "4000"),
		DBUrl:                 getEnv("DB_URL", ""),
		JWTSecret:             jwtSecret,
		AppEnv:                normalizeEnv(getEnv("APP_ENV", "production")),
		CORSOrigins:           getEnv("CORS_ORIGINS", "http://localhost:3000"),
		PayMongoSecretKey:     getEnv("PAYMONGO_SECRET_KEY", ""),
		PayMongoAPIURL:        getEnv("PAYMONGO_API_URL", "https://api.paymongo.com/v1"),
		PayMongoTimeout:       getEnvDuration("PAYMONGO_TIMEOUT", 15*time.Second),
		PayMongoWebhookSecret: getEnv("PAYMONGO_WEBHOOK_SECRET", ""),
		PayMongoBreakerFails:  uint32(getEnvInt("PAYMONGO_BREAKER_FAILURES", 5)),
		PayMongoBreakerReset:  getEnvDuration("PAYMONGO_BREAKER_COOLDOWN", 30*time.Second),
		RedisURL:              getEnv("REDIS_URL", ""),
		WebhookEventTTL:       getEnvDuration("WEBHOOK_EVENT_TTL", 72*time.Hour),
		TrainingTimezone:      getEnv("TRAINING_TIMEZONE", "Local"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
		LogFile:               getEnv("LOG_FILE", ""),
		LogCaller:             getEnvBool("LOG_CALLER", false),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

// PaymentsEnabled reports whether a PayMongo secret key is configured.
func (c *Config) PaymentsEnabled() bool {
	return c != nil && c.PayMongoSecretKey != ""
}

// Location resolves TrainingTimezone, falling back to the server's local zone.
func (c *Config) Location() *time.Location {
	if c == nil || c.TrainingTimezone == "" || strings.EqualFold(c.TrainingTimezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TrainingTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}
