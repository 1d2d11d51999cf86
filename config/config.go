package config

import (
    "log"
    "os"
    "strconv"
    "time"

    "github.com/joho/godotenv"

    "dukalink-payment-api/database"
)

type Config struct {
    Database database.DatabaseConfig
    Kwelipay KwelipayConfig
    Server   ServerConfig
    Redis    RedisConfig
    Limits   LimitsConfig
    Session  SessionConfig
}

type KwelipayConfig struct {
    ClientID      string
    ClientSecret  string
    TokenURL      string
    EncryptionKey string
    WebhookSecret string
    Environment   string
}

type ServerConfig struct {
    Port string
}

type RedisConfig struct {
    URL               string
    WorkerConcurrency int
}

type LimitsConfig struct {
    MaxRetries       int
    BaseBackoff      time.Duration
    RateLimitMax     int
    RateLimitWindow  time.Duration
    RateLimitEnabled bool
}

type SessionConfig struct {
    RetentionDays int
    MaxPollCount  int
    PollInterval  time.Duration
    AutoCreate    bool
}

func Load() *Config {
    if err := godotenv.Load(); err != nil {
        log.Printf("Warning: Error loading .env file: %v", err)
    }

    cfg := &Config{
        Database: database.DatabaseConfig{
            Host:     os.Getenv("DB_HOST"),
            User:     os.Getenv("DB_USER"),
            Password: os.Getenv("DB_PASSWORD"),
            DBName:   os.Getenv("DB_NAME"),
        },
        Kwelipay: KwelipayConfig{
            ClientID:      os.Getenv("KWELIPAY_CLIENT_ID"),
            ClientSecret:  os.Getenv("KWELIPAY_CLIENT_SECRET"),
            TokenURL:      os.Getenv("KWELIPAY_TOKEN_URL"),
            EncryptionKey: os.Getenv("KWELIPAY_ENCRYPTION_KEY"),
            WebhookSecret: os.Getenv("KWELIPAY_WEBHOOK_SECRET"),
            Environment:   os.Getenv("KWELIPAY_ENVIRONMENT"),
        },
        Server: ServerConfig{
            Port: os.Getenv("SERVER_PORT"),
        },
        Redis: RedisConfig{
            URL:               os.Getenv("REDIS_URL"),
            WorkerConcurrency: intEnv("WORKER_CONCURRENCY", 2),
        },
        Limits: LimitsConfig{
            MaxRetries:       intEnv("HTTP_MAX_RETRIES", 3),
            BaseBackoff:      durationEnv("HTTP_BASE_BACKOFF_MS", 1000) * time.Millisecond,
            RateLimitMax:     intEnv("RATE_LIMIT_MAX_REQUESTS", 100),
            RateLimitWindow:  durationEnv("RATE_LIMIT_WINDOW_SECONDS", 60) * time.Second,
            RateLimitEnabled: os.Getenv("RATE_LIMIT_DISABLED") != "true",
        },
        Session: SessionConfig{
            RetentionDays: intEnv("SESSION_RETENTION_DAYS", 30),
            MaxPollCount:  intEnv("SESSION_MAX_POLL_COUNT", 10),
            PollInterval:  durationEnv("SESSION_POLL_INTERVAL_SECONDS", 30) * time.Second,
            AutoCreate:    os.Getenv("SESSION_AUTO_CREATE") != "false",
        },
    }

    if cfg.Server.Port == "" {
        cfg.Server.Port = "8080"
    }

    if cfg.Redis.URL == "" {
        cfg.Redis.URL = "redis://localhost:6379/0"
        log.Printf("Warning: REDIS_URL not set, using default: %s", cfg.Redis.URL)
    }

    if cfg.Kwelipay.Environment == "" {
        cfg.Kwelipay.Environment = "sandbox"
        log.Printf("Warning: KWELIPAY_ENVIRONMENT not set, defaulting to sandbox")
    }

    return cfg
}

func intEnv(name string, fallback int) int {
    raw := os.Getenv(name)
    if raw == "" {
        return fallback
    }
    value, err := strconv.Atoi(raw)
    if err != nil {
        log.Printf("Warning: invalid %s=%q, using default %d", name, raw, fallback)
        return fallback
    }
    return value
}

func durationEnv(name string, fallback int64) time.Duration {
    raw := os.Getenv(name)
    if raw == "" {
        return time.Duration(fallback)
    }
    value, err := strconv.ParseInt(raw, 10, 64)
    if err != nil {
        log.Printf("Warning: invalid %s=%q, using default %d", name, raw, fallback)
        return time.Duration(fallback)
    }
    return time.Duration(value)
}
