package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 認証バックエンドの種別。
const (
	IdentityBackendFirebase = "firebase"
	IdentityBackendMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database（空の場合はインメモリのセッションストアを使用する）
	DatabaseURL string

	// Identity
	IdentityBackend    string
	FirebaseAPIKey     string
	FirebaseProjectID  string
	IdentitySigningKey string
	IdentityTimeout    time.Duration

	// Session
	SessionMaxAge          int
	SessionIdleTimeout     time.Duration
	SessionCleanupInterval time.Duration

	// Catalog
	CatalogPath         string
	CatalogURL          string
	CatalogCacheTTL     time.Duration
	CatalogFetchTimeout time.Duration
	CatalogMaxSize      int64

	// Rate Limit（req/min/IP）
	RateLimitAuth int

	// Server
	ServerPort string
	BaseURL    string
	StaticDir  string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.IdentityBackend = os.Getenv("IDENTITY_BACKEND")
	switch cfg.IdentityBackend {
	case IdentityBackendFirebase:
		cfg.FirebaseAPIKey = os.Getenv("FIREBASE_API_KEY")
		if cfg.FirebaseAPIKey == "" {
			missing = append(missing, "FIREBASE_API_KEY")
		}
		cfg.FirebaseProjectID = os.Getenv("FIREBASE_PROJECT_ID")
		if cfg.FirebaseProjectID == "" {
			missing = append(missing, "FIREBASE_PROJECT_ID")
		}
	case IdentityBackendMemory:
		cfg.IdentitySigningKey = os.Getenv("IDENTITY_SIGNING_KEY")
		if cfg.IdentitySigningKey == "" {
			missing = append(missing, "IDENTITY_SIGNING_KEY")
		}
	case "":
		missing = append(missing, "IDENTITY_BACKEND")
	default:
		return nil, fmt.Errorf("unsupported IDENTITY_BACKEND: %q (allowed: %s, %s)",
			cfg.IdentityBackend, IdentityBackendFirebase, IdentityBackendMemory)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DatabaseURL = getEnvString("DATABASE_URL", "")
	cfg.IdentityTimeout = getEnvDuration("IDENTITY_TIMEOUT", 10*time.Second)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionIdleTimeout = getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.CatalogPath = getEnvString("CATALOG_PATH", "web/static/loadData.json")
	cfg.CatalogURL = getEnvString("CATALOG_URL", "")
	cfg.CatalogCacheTTL = getEnvDuration("CATALOG_CACHE_TTL", 5*time.Minute)
	cfg.CatalogFetchTimeout = getEnvDuration("CATALOG_FETCH_TIMEOUT", 10*time.Second)
	cfg.CatalogMaxSize = getEnvInt64("CATALOG_MAX_SIZE", 5242880)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.StaticDir = getEnvString("STATIC_DIR", "web/static")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.BaseURL)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
