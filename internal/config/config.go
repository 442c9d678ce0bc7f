package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Host     string
	Port     string
	Env      string
	LogLevel string

	// Remote store
	DatabaseURL string

	// Redis
	RedisURL        string
	CacheTTLMinutes int

	// Local store
	LocalDBPath string

	// Identity
	AuthJWTSecret string

	// YouTube
	YouTubeAPIKey  string
	YouTubeBaseURL string

	// Gemini AI
	GeminiAPIKey         string
	GeminiBaseURL        string
	GeminiModel          string
	GeminiConcurrentReqs int

	// Credits
	CostSearch            int
	CostNotes             int
	CostTest              int
	ChargeNotesOnCacheHit bool
	ChargeTestsOnCacheHit bool

	// Workers
	WorkerCount int

	// Shell
	FrontendURL string
}

// ListenAddr is the daemon's bind address. HOST defaults to loopback.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Host:                  getEnvOrDefault("HOST", "127.0.0.1"),
		Port:                  getEnvOrDefault("PORT", "8080"),
		Env:                   getEnvOrDefault("ENV", "development"),
		LogLevel:              getEnvOrDefault("LOG_LEVEL", "info"),
		DatabaseURL:           mustGetEnv("DATABASE_URL"),
		RedisURL:              mustGetEnv("REDIS_URL"),
		CacheTTLMinutes:       getEnvAsIntOrDefault("CACHE_TTL_MINUTES", 60),
		LocalDBPath:           getEnvOrDefault("LOCAL_DB_PATH", "./tubetrack.db"),
		AuthJWTSecret:         mustGetEnv("AUTH_JWT_SECRET"),
		YouTubeAPIKey:         mustGetEnv("YOUTUBE_API_KEY"),
		YouTubeBaseURL:        getEnvOrDefault("YOUTUBE_BASE_URL", ""),
		GeminiAPIKey:          mustGetEnv("GEMINI_API_KEY"),
		GeminiBaseURL:         getEnvOrDefault("GEMINI_BASE_URL", ""),
		GeminiModel:           getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiConcurrentReqs:  getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		CostSearch:            getEnvAsIntOrDefault("COST_SEARCH", 15),
		CostNotes:             getEnvAsIntOrDefault("COST_NOTES", 10),
		CostTest:              getEnvAsIntOrDefault("COST_TEST", 5),
		ChargeNotesOnCacheHit: getEnvAsBoolOrDefault("CHARGE_NOTES_ON_CACHE_HIT", true),
		ChargeTestsOnCacheHit: getEnvAsBoolOrDefault("CHARGE_TESTS_ON_CACHE_HIT", false),
		WorkerCount:           getEnvAsIntOrDefault("WORKER_COUNT", 2),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
