package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Insights execution modes
const (
	ModeInline     = "inline"
	ModeBackground = "background"
	ModeQueue      = "queue"
)

// Report store backends
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// DefaultModels is the ordered candidate list tried by the insight generator.
var DefaultModels = []string{
	"deepseek/deepseek-r1-distill-llama-70b:free",
	"meta-llama/llama-3.2-3b-instruct:free",
	"google/gemini-2.0-flash-lite-preview-02-05:free",
	"mistralai/mistral-small-3.1-24b-instruct:free",
}

// Config holds application configuration loaded from environment variables
type Config struct {
	Env  string
	Port string

	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBSlowQuery       time.Duration
	RedisURL          string
	ReportStore       string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	SessionSecret      string

	LogLevel  string
	LogFormat string

	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterReferer string
	OpenRouterTitle   string
	OpenRouterStub    bool

	InsightsMode             string
	InsightsModels           []string
	InsightsCandidateTimeout time.Duration
	InsightsGenerateTimeout  time.Duration
	InsightsStaleAfter       time.Duration
	InsightsTemperature      float64
	InsightsMaxTokens        int

	PollLifetime        time.Duration
	PollCreateLimit     int
	PollCreateWindow    time.Duration
	PollSweepSchedule   string
	PollSweepTimezone   string
	WorkerConcurrency   int
	EmbeddedWorker      bool
	ShutdownGracePeriod time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment wins.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	cfg := &Config{
		Env:  getEnvWithDefault("ENV", "development"),
		Port: getEnvWithDefault("PORT", "8080"),

		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DBMaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		DBSlowQuery:       getDuration("DB_SLOW_QUERY", 500*time.Millisecond),
		RedisURL:          getEnvWithDefault("REDIS_URL", "redis://localhost:6379/0"),
		ReportStore:       strings.ToLower(getEnvWithDefault("REPORT_STORE", StorePostgres)),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:  getEnvWithDefault("GOOGLE_CALLBACK_URL", "http://localhost:8080/auth/google/callback"),
		SessionSecret:      os.Getenv("SESSION_SECRET"),

		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "text"),

		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: getEnvWithDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterReferer: getEnvWithDefault("OPENROUTER_REFERER", "https://friendfrenzy.app"),
		OpenRouterTitle:   getEnvWithDefault("OPENROUTER_TITLE", "FriendFrenzy"),
		OpenRouterStub:    getBool("OPENROUTER_STUB", false),

		InsightsMode:             strings.ToLower(getEnvWithDefault("INSIGHTS_MODE", ModeBackground)),
		InsightsModels:           getList("INSIGHTS_MODELS", DefaultModels),
		InsightsCandidateTimeout: getDuration("INSIGHTS_CANDIDATE_TIMEOUT", 25*time.Second),
		InsightsGenerateTimeout:  getDuration("INSIGHTS_GENERATE_TIMEOUT", 3*time.Minute),
		InsightsStaleAfter:       getDuration("INSIGHTS_PROCESSING_STALE_AFTER", 10*time.Minute),
		InsightsTemperature:      getFloat("INSIGHTS_TEMPERATURE", 0.8),
		InsightsMaxTokens:        getInt("INSIGHTS_MAX_TOKENS", 800),

		PollLifetime:        getDuration("POLL_LIFETIME", 7*24*time.Hour),
		PollCreateLimit:     getInt("POLL_CREATE_LIMIT", 30),
		PollCreateWindow:    getDuration("POLL_CREATE_WINDOW", 5*time.Minute),
		PollSweepSchedule:   getEnvWithDefault("POLL_SWEEP_SCHEDULE", "*/5 * * * *"),
		PollSweepTimezone:   getEnvWithDefault("POLL_SWEEP_TIMEZONE", "UTC"),
		WorkerConcurrency:   getInt("WORKER_CONCURRENCY", 5),
		EmbeddedWorker:      getBool("WORKER_EMBEDDED", false),
		ShutdownGracePeriod: getDuration("SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	// Warn if using default session secret (insecure for production)
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "dev-secret-change-in-production-use-openssl-rand-hex-32"
		slog.Warn("Using default SESSION_SECRET. Generate a secure secret with: openssl rand -hex 32")
	}

	switch cfg.InsightsMode {
	case ModeInline, ModeBackground, ModeQueue:
	default:
		slog.Warn("Unknown INSIGHTS_MODE, using background", "mode", cfg.InsightsMode)
		cfg.InsightsMode = ModeBackground
	}

	if cfg.OpenRouterAPIKey == "" && !cfg.OpenRouterStub {
		slog.Warn("OPENROUTER_API_KEY not set. AI insights will fall back to static content.")
	}

	return cfg
}

// IsProduction reports whether the app runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return n
}

func getFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("Invalid number in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return f
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("Invalid boolean in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return b
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Invalid duration in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return d
}

// getList splits a comma-separated variable, dropping blank entries.
func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultValue...)
	}
	return out
}
