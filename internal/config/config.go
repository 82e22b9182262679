package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Engine   EngineConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
	ChannelGatewayURL  string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

// EngineConfig groups the conversational engine knobs. Frustration
// thresholds are deliberately explicit configuration.
type EngineConfig struct {
	SessionTimeoutHours int
	HistoryCarryLimit   int // max messages seeded from the previous session
	DedupWindowSeconds  int
	IdempotencyTTL      time.Duration
	CacheTTL            time.Duration
	LocalCacheSize      int
	FrustrationMinCount int
	FrustrationLookback int // user turns inspected for frustration matches
	OutboxFlushInterval time.Duration
	OutboxMaxAttempts   int
	ConflictRetryBudget int // inbound-turn retries on cache version conflict
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			ChannelGatewayURL:  getEnv("CHANNEL_GATEWAY_URL", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "BookingChat"),
		},
		Engine: EngineConfig{
			SessionTimeoutHours: getEnvAsInt("SESSION_TIMEOUT_HOURS", 12),
			HistoryCarryLimit:   getEnvAsInt("HISTORY_CARRY_LIMIT", 20),
			DedupWindowSeconds:  getEnvAsInt("DEDUP_WINDOW_SECONDS", 5),
			IdempotencyTTL:      time.Duration(getEnvAsInt("IDEMPOTENCY_TTL_MINUTES", 5)) * time.Minute,
			CacheTTL:            time.Duration(getEnvAsInt("SESSION_TIMEOUT_HOURS", 12)) * time.Hour,
			LocalCacheSize:      getEnvAsInt("LOCAL_CACHE_SIZE", 500),
			FrustrationMinCount: getEnvAsInt("FRUSTRATION_MIN_COUNT", 2),
			FrustrationLookback: getEnvAsInt("FRUSTRATION_LOOKBACK", 6),
			OutboxFlushInterval: time.Duration(getEnvAsInt("OUTBOX_FLUSH_SECONDS", 5)) * time.Second,
			OutboxMaxAttempts:   getEnvAsInt("OUTBOX_MAX_ATTEMPTS", 5),
			ConflictRetryBudget: getEnvAsInt("CONFLICT_RETRY_BUDGET", 3),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
