package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	JWTSecret  string
	JWTExpDays int

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	OAuthHTTPTimeout   time.Duration

	// Redirect
	FrontendURL     string
	DefaultNextPath string

	// Analyzer
	OllamaURL     string
	OllamaModel   string
	OllamaTimeout time.Duration

	// Rate Limit
	RateLimitScan int

	// Retention (0で無効)
	ScanRetentionDays int

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// Cookie
	CookieSecure bool

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// JWT_SECRETとGoogle OAuthの各値は任意で、未設定時は開発用の署名鍵・OAuth無効として起動する。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.JWTExpDays = getEnvInt("JWT_EXP_DAYS", 7)
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURI = os.Getenv("GOOGLE_REDIRECT_URI")
	cfg.OAuthHTTPTimeout = getEnvDuration("OAUTH_HTTP_TIMEOUT", 20*time.Second)
	cfg.FrontendURL = getEnvString("FRONTEND_URL", "http://localhost:5173/auth/callback")
	cfg.DefaultNextPath = getEnvString("DEFAULT_NEXT_PATH", "/")
	cfg.OllamaURL = getEnvString("OLLAMA_URL", "http://127.0.0.1:11434/api/generate")
	cfg.OllamaModel = getEnvString("OLLAMA_MODEL", "llava:7b")
	cfg.OllamaTimeout = getEnvDuration("OLLAMA_TIMEOUT", 120*time.Second)
	cfg.RateLimitScan = getEnvInt("RATE_LIMIT_SCAN", 10)
	cfg.ScanRetentionDays = getEnvInt("SCAN_RETENTION_DAYS", 0)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", strings.HasPrefix(cfg.FrontendURL, "https://"))
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

	if _, err := url.Parse(cfg.FrontendURL); err != nil {
		return nil, fmt.Errorf("invalid FRONTEND_URL: %w", err)
	}
	if !strings.HasPrefix(cfg.DefaultNextPath, "/") {
		return nil, fmt.Errorf("DEFAULT_NEXT_PATH must start with '/': %q", cfg.DefaultNextPath)
	}

	if cfg.ScanRetentionDays < 0 {
		return nil, fmt.Errorf("SCAN_RETENTION_DAYS must not be negative: %d", cfg.ScanRetentionDays)
	}

	return cfg, nil
}

// OAuthEnabled はOAuthフロー開始に必要な設定が揃っているかを返す。
func (c *Config) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleRedirectURI != ""
}

// OAuthCallbackEnabled はOAuthコールバック処理（コード交換）に必要な設定が揃っているかを返す。
func (c *Config) OAuthCallbackEnabled() bool {
	return c.OAuthEnabled() && c.GoogleClientSecret != ""
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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
