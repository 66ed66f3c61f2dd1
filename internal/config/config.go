package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Logger LoggerConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Quota     QuotaConfig
	Payment   PaymentConfig
	RateLimit RateLimitConfig
}

type LoggerConfig struct {
	Level string
}

// QuotaConfig controls metering limits.
type QuotaConfig struct {
	FreeDailyLimit int
}

// PaymentConfig selects and configures the payment provider.
type PaymentConfig struct {
	Provider       string // sandbox | wechat
	OrderPrefix    string
	WechatEndpoint string
	WechatMchID    string
	WechatAPIKey   string
	TimeoutSeconds int
}

// RateLimitConfig guards the public callback and quota endpoints.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CallbackRate  float64
	CallbackBurst int
	QuotaRate     float64
	QuotaBurst    int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "inspira-billing"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		Logger: LoggerConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "inspira"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		Quota: QuotaConfig{
			FreeDailyLimit: getenvInt("QUOTA_FREE_DAILY_LIMIT", 3),
		},
		Payment: PaymentConfig{
			Provider:       strings.ToLower(getenv("PAYMENT_PROVIDER", "sandbox")),
			OrderPrefix:    getenv("PAYMENT_ORDER_PREFIX", "INSPI"),
			WechatEndpoint: strings.TrimSpace(getenv("WECHAT_PAY_ENDPOINT", "")),
			WechatMchID:    strings.TrimSpace(getenv("WECHAT_PAY_MCH_ID", "")),
			WechatAPIKey:   strings.TrimSpace(getenv("WECHAT_PAY_API_KEY", "")),
			TimeoutSeconds: getenvInt("PAYMENT_TIMEOUT_SECONDS", 5),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			CallbackRate:  getenvFloat("RATE_LIMIT_CALLBACK_RATE", 20),
			CallbackBurst: getenvInt("RATE_LIMIT_CALLBACK_BURST", 40),
			QuotaRate:     getenvFloat("RATE_LIMIT_QUOTA_RATE", 10),
			QuotaBurst:    getenvInt("RATE_LIMIT_QUOTA_BURST", 20),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
