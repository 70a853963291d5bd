package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetInt64Env returns an int64 environment variable or a default value.
func GetInt64Env(key string, defaultVal int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetDurationEnv parses a Go duration ("90s", "15m") or returns the default.
func GetDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		log.Printf("invalid duration for %s=%q, using %s", key, val, defaultVal)
	}
	return defaultVal
}

// GetBoolEnv returns a bool environment variable or a default value.
func GetBoolEnv(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// GetListEnv splits a comma separated variable, trimming blanks.
func GetListEnv(key string, defaultVal []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsProduction checks if the app runs in production mode.
func IsProduction() bool {
	return GetEnv("ENV", "development") == "production"
}

// Config is the process configuration assembled from the environment.
type Config struct {
	Port        string
	CORSOrigins string
	JWTSecret   string

	Database DatabaseConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	OTP      OTPConfig
	Transfer TransferConfig
	Jobs     JobsConfig
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	TxTimeout       time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

type OTPConfig struct {
	CodeLength    int
	TTL           time.Duration
	MaxAttempts   int
	BlockDuration time.Duration
	BcryptCost    int
}

type TransferConfig struct {
	HighCostCountries  []string
	HighCostSurcharge  int64
	SpreadBps          int64
	ChallengeThreshold int64
	FeeAccountID       string
	MaxRetries         int
	RetryBaseDelay     time.Duration
	HomeCountry        string
	BaseCurrency       string
	Rates              string
	RateCacheTTL       time.Duration
}

type JobsConfig struct {
	Enabled           bool
	SweepSchedule     string
	RecurringSchedule string
}

// Load reads the whole configuration. Unset values fall back to development defaults.
func Load() Config {
	return Config{
		Port:        GetEnv("PORT", "3000"),
		CORSOrigins: GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		JWTSecret:   GetEnv("JWT_SECRET", "bankcore-dev-secret"),
		Database: DatabaseConfig{
			Host:            GetEnv("DB_HOST", "localhost"),
			Port:            GetEnv("DB_PORT", "5432"),
			User:            GetEnv("DB_USER", "postgres"),
			Password:        GetEnv("DB_PASSWORD", "postgres"),
			Name:            GetEnv("DB_NAME", "bankcore"),
			SSLMode:         GetEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    GetIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    GetIntEnv("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
			TxTimeout:       GetDurationEnv("DB_TX_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetIntEnv("REDIS_DB", 0),
		},
		AMQP: AMQPConfig{
			URL:      GetEnv("AMQP_URL", ""),
			Exchange: GetEnv("AMQP_EXCHANGE", "bankcore_events"),
		},
		OTP: OTPConfig{
			CodeLength:    GetIntEnv("OTP_CODE_LENGTH", 6),
			TTL:           GetDurationEnv("OTP_TTL", 5*time.Minute),
			MaxAttempts:   GetIntEnv("OTP_MAX_ATTEMPTS", 3),
			BlockDuration: GetDurationEnv("OTP_BLOCK_DURATION", 15*time.Minute),
			BcryptCost:    GetIntEnv("OTP_BCRYPT_COST", 10),
		},
		Transfer: TransferConfig{
			HighCostCountries:  GetListEnv("HIGH_COST_COUNTRIES", nil),
			HighCostSurcharge:  GetInt64Env("HIGH_COST_SURCHARGE", 1000),
			SpreadBps:          GetInt64Env("FX_SPREAD_BPS", 50),
			ChallengeThreshold: GetInt64Env("TRANSFER_CHALLENGE_THRESHOLD", 100000),
			FeeAccountID:       GetEnv("FEE_ACCOUNT_ID", ""),
			MaxRetries:         GetIntEnv("SETTLE_MAX_RETRIES", 3),
			RetryBaseDelay:     GetDurationEnv("SETTLE_RETRY_DELAY", 10*time.Millisecond),
			HomeCountry:        GetEnv("HOME_COUNTRY", "US"),
			BaseCurrency:       GetEnv("FX_BASE_CURRENCY", "USD"),
			Rates:              GetEnv("FX_RATES", "EUR=0.92,GBP=0.79,JPY=151.20,CAD=1.36,CHF=0.88"),
			RateCacheTTL:       GetDurationEnv("FX_RATE_CACHE_TTL", time.Minute),
		},
		Jobs: JobsConfig{
			Enabled:           GetBoolEnv("JOBS_ENABLED", true),
			SweepSchedule:     GetEnv("OTP_SWEEP_SCHEDULE", "@every 1m"),
			RecurringSchedule: GetEnv("RECURRING_SCHEDULE", "@every 5m"),
		},
	}
}

// DSN builds the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode
}
