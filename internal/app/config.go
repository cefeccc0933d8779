package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr          string
	RequestTimeout    time.Duration
	LogLevel          string
	LogFormat         string
	UserAgent         string
	DatasetURL        string
	DatasetTimeout    time.Duration
	RedisURL          string
	TMDBAPIKey        string
	TMDBBaseURL       string
	TMDBCacheTTL      time.Duration
	RecommendEndpoint string
	RecommendCacheTTL time.Duration
	JWTSecret         string
	TokenTTL          time.Duration
	DBPath            string
}

func LoadConfig() Config {
	// Missing .env is fine: environment variables alone are enough.
	_ = godotenv.Load()

	return Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		RequestTimeout:    time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:         getEnv("CATALOG_USER_AGENT", "movie-catalog/1.0"),
		DatasetURL:        getEnv("DATASET_URL", ""),
		DatasetTimeout:    time.Duration(getEnvInt("DATASET_TIMEOUT_SECONDS", 60)) * time.Second,
		RedisURL:          getEnv("REDIS_URL", ""),
		TMDBAPIKey:        strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBBaseURL:       getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBCacheTTL:      time.Duration(getEnvInt("TMDB_CACHE_TTL_DAYS", 7)) * 24 * time.Hour,
		RecommendEndpoint: getEnv("RECOMMEND_ENDPOINT", ""),
		RecommendCacheTTL: time.Duration(getEnvInt("RECOMMEND_CACHE_TTL_HOURS", 6)) * time.Hour,
		JWTSecret:         strings.TrimSpace(os.Getenv("JWT_SECRET")),
		TokenTTL:          time.Duration(getEnvInt("TOKEN_TTL_HOURS", 72)) * time.Hour,
		DBPath:            getEnv("DB_PATH", "catalog.db"),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
