package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// LLM / Search
	GeminiAPIKey string
	TavilyAPIKey string

	// Payment
	// WebhookSecretは必須。未設定のままデフォルト値にフォールバックすると
	// 署名検証が事実上無効化されるため、起動時に失敗させる。
	WebhookSecret    string
	PaymentAPIKey    string
	PaymentStoreID   string
	PaymentVariantID string

	// Generation
	GenerationTimeout time.Duration
	SearchMaxResults  int

	// Rate Limit
	RateLimitGeneral    int
	RateLimitGeneration int
	// TrustProxy は信頼できるリバースプロキシの背後にあるデプロイでのみtrueにする。
	// trueの場合、レート制限のクライアント識別にX-Forwarded-Forを使用する。
	TrustProxy bool

	// Cleanup
	PaymentEventTTL time.Duration
	CleanupInterval time.Duration

	// Server
	ServerPort  string
	MetricsPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if cfg.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}

	cfg.TavilyAPIKey = os.Getenv("TAVILY_API_KEY")
	if cfg.TavilyAPIKey == "" {
		missing = append(missing, "TAVILY_API_KEY")
	}

	cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")
	if cfg.WebhookSecret == "" {
		missing = append(missing, "WEBHOOK_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	// 決済プロバイダのキーが未設定の場合、チェックアウトフローは無効になる
	// （Webhookフローのみのデプロイを許容する）。
	cfg.PaymentAPIKey = getEnvString("PAYMENT_API_KEY", "")
	cfg.PaymentStoreID = getEnvString("PAYMENT_STORE_ID", "")
	cfg.PaymentVariantID = getEnvString("PAYMENT_VARIANT_ID", "")

	cfg.GenerationTimeout = getEnvDuration("GENERATION_TIMEOUT", 90*time.Second)
	cfg.SearchMaxResults = getEnvInt("SEARCH_MAX_RESULTS", 5)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitGeneration = getEnvInt("RATE_LIMIT_GENERATION", 10)
	cfg.TrustProxy = getEnvBool("TRUST_PROXY", false)
	cfg.PaymentEventTTL = getEnvDuration("PAYMENT_EVENT_TTL", 90*24*time.Hour)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// CheckoutEnabled はチェックアウトセッション型の決済フローが利用可能かを返す。
func (c *Config) CheckoutEnabled() bool {
	return c.PaymentAPIKey != "" && c.PaymentStoreID != "" && c.PaymentVariantID != ""
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
