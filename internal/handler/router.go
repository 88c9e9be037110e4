package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/reportify/internal/metrics"
	"github.com/hitoshi/reportify/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.Recorder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ヘルスチェック
	HealthChecker HealthChecker

	// プロフィール・クレジット
	ProfileService ProfileServiceInterface

	// レポート生成
	ResearchService ResearchServiceInterface

	// 履歴
	HistoryService HistoryServiceInterface

	// 決済
	WebhookVerifier WebhookVerifierInterface
	CreditGranter   CreditGranterInterface
	CheckoutClient  CheckoutClientInterface // 未設定の場合はnil
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SecurityHeadersMiddleware → RecoveryMiddleware → LoggingMiddleware
//
// Webhookルート（/webhook）は決済プロバイダからの再配送をレート制限で
// 落とさないよう、レート制限グループの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))

	rootHandler := NewRootHandler(deps.HealthChecker)
	profileHandler := NewProfileHandler(deps.ProfileService)
	reportHandler := NewReportHandler(deps.ResearchService)
	historyHandler := NewHistoryHandler(deps.HistoryService)
	paymentHandler := NewPaymentHandler(deps.WebhookVerifier, deps.CreditGranter, deps.CheckoutClient, deps.Metrics)

	// --- レート制限の外に置くルート ---

	// ルート・ヘルスチェック
	r.Get("/", rootHandler.Root)
	r.Get("/health", rootHandler.Health)

	// 決済Webhook（署名検証がアクセス制御を担う）
	r.Post("/webhook", paymentHandler.Webhook)

	// --- レート制限が効くルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// レポート生成（生成専用レート制限を追加）
		r.With(deps.RateLimiter.GenerationMiddleware()).Post("/generate", reportHandler.Generate)

		// プロフィール
		r.Get("/profile/{user_id}", profileHandler.GetProfile)

		// 履歴
		r.Post("/history", historyHandler.SaveHistory)
		r.Get("/history/{user_id}", historyHandler.ListHistory)

		// チェックアウトセッション型決済フロー
		r.Post("/create-checkout-session", paymentHandler.CreateCheckoutSession)
		r.Get("/verify-payment", paymentHandler.VerifyPayment)
	})

	return r
}
