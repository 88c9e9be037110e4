package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）
	GeneralBurst    int           // API全般のバーストサイズ
	GenerationRate  rate.Limit    // レポート生成のレート（req/sec）
	GenerationBurst int           // レポート生成のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔

	// TrustProxy は信頼できるリバースプロキシの背後で動作しているかどうか。
	// trueの場合のみX-Forwarded-Forをクライアント識別に使用する。
	// 直接公開されたデプロイでXFFを信用すると、ヘッダ偽装で
	// レート制限のキーを任意に選べてしまう。
	TrustProxy bool
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/クライアント、レポート生成 10 req/min/クライアント。
// 生成は外部APIのコストが高いため専用の厳しい制限を設ける。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0),
		GeneralBurst:    120,
		GenerationRate:  rate.Limit(10.0 / 60.0),
		GenerationBurst: 10,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// keyedLimiters はキー（クライアントIP）ごとのリミッター集合。
type keyedLimiters struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int
}

// get はキーに対応するリミッターを取得または作成する。
func (k *keyedLimiters) get(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	if cl, exists := k.limiters[key]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(k.limit, k.burst)
	k.limiters[key] = &clientLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

// cleanup は最終アクセス時刻がttlを超えたエントリを削除する。
func (k *keyedLimiters) cleanup(ttl time.Duration) {
	now := time.Now()
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, cl := range k.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(k.limiters, key)
		}
	}
}

// count は現在のエントリ数を返す。
func (k *keyedLimiters) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

// RateLimiter はクライアントIPごとのレート制限を管理する。
// API全般のレート制限とレポート生成のレート制限の2種類を提供する。
// 本システムにはセッション認証がないため、キーはクライアントIPとする。
type RateLimiter struct {
	config     RateLimiterConfig
	general    *keyedLimiters
	generation *keyedLimiters
	stopCh     chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config: config,
		general: &keyedLimiters{
			limiters: make(map[string]*clientLimiter),
			limit:    config.GeneralRate,
			burst:    config.GeneralBurst,
		},
		generation: &keyedLimiters{
			limiters: make(map[string]*clientLimiter),
			limit:    config.GenerationRate,
			burst:    config.GenerationBurst,
		},
		stopCh: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general, "general", rl.config.GeneralRate)
}

// GenerationMiddleware はレポート生成専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) GenerationMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.generation, "generation", rl.config.GenerationRate)
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.count()
}

// GenerationLimiterCount は現在管理されている生成リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GenerationLimiterCount() int {
	return rl.generation.count()
}

// middleware は指定のリミッター集合を使用するミドルウェアを生成する。
func (rl *RateLimiter) middleware(limiters *keyedLimiters, limitType string, r rate.Limit) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			key := ClientIP(req, rl.config.TrustProxy)

			if !limiters.get(key).Allow() {
				writeRateLimitResponse(w, r)
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", key),
					slog.String("limit_type", limitType),
				)
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	ttl := rl.config.CleanupInterval * 2

	for {
		select {
		case <-ticker.C:
			rl.general.cleanup(ttl)
			rl.generation.cleanup(ttl)
		case <-rl.stopCh:
			return
		}
	}
}

// ClientIP はリクエストからクライアントIPを抽出する。
// trustProxyがtrueの場合はX-Forwarded-Forの先頭エントリを優先する
// （信頼できるプロキシが付与した値である前提）。
// falseの場合、XFFはクライアントが自由に設定できるため無視し、
// 常にRemoteAddrのホスト部を使用する。
func ClientIP(r *http.Request, trustProxy bool) string {
	if xff := r.Header.Get("X-Forwarded-For"); trustProxy && xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"code":     "rate_limit_exceeded",
		"message":  "Too many requests. Please try again later.",
		"category": "system",
		"action":   "Please wait and retry after the specified time.",
	})
}
