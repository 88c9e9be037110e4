package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/reportify/internal/config"
	"github.com/hitoshi/reportify/internal/credit"
	"github.com/hitoshi/reportify/internal/database"
	"github.com/hitoshi/reportify/internal/handler"
	"github.com/hitoshi/reportify/internal/history"
	"github.com/hitoshi/reportify/internal/llm"
	"github.com/hitoshi/reportify/internal/logger"
	"github.com/hitoshi/reportify/internal/metrics"
	"github.com/hitoshi/reportify/internal/middleware"
	"github.com/hitoshi/reportify/internal/payment"
	"github.com/hitoshi/reportify/internal/report"
	"github.com/hitoshi/reportify/internal/repository"
	"github.com/hitoshi/reportify/internal/research"
	"github.com/hitoshi/reportify/internal/search"
	"github.com/hitoshi/reportify/internal/security"
	"github.com/hitoshi/reportify/internal/worker/cleanup"

	"golang.org/x/time/rate"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("checkout_enabled", cfg.CheckoutEnabled()),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// メトリクスは別ポートの専用リスナーで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	reportRepo := repository.NewPostgresReportRepo(db)
	historyRepo := repository.NewPostgresHistoryRepo(db)
	eventRepo := repository.NewPostgresPaymentEventRepo(db)

	// 3. メトリクスコレクターの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 外部APIクライアントの初期化
	// 外部APIのタイムアウトは生成フロー全体の制限時間に合わせる
	httpClient := &http.Client{Timeout: cfg.GenerationTimeout}
	searchClient := search.NewClient(httpClient, slog.Default(), cfg.TavilyAPIKey, cfg.SearchMaxResults)
	llmClient := llm.NewClient(httpClient, slog.Default(), cfg.GeminiAPIKey)

	// 5. ドメインサービスの初期化
	creditService := credit.NewService(profileRepo, eventRepo, cfg.PaymentEventTTL, slog.Default())
	generator := report.NewGenerator(searchClient, llmClient, slog.Default(), cfg.GenerationTimeout)
	sanitizer := security.NewReportSanitizer()
	researchService := research.NewService(
		creditService, generator, reportRepo, sanitizer, collector, slog.Default(),
	)
	historyService := history.NewService(historyRepo)

	// 6. 決済コンポーネントの初期化
	verifier := payment.NewWebhookVerifier(cfg.WebhookSecret)

	// チェックアウトセッション型フローはキーが揃っている場合のみ有効化する
	var checkoutClient handler.CheckoutClientInterface
	if cfg.CheckoutEnabled() {
		checkoutClient = payment.NewCheckoutClient(
			&http.Client{Timeout: 15 * time.Second},
			slog.Default(),
			cfg.PaymentAPIKey, cfg.PaymentStoreID, cfg.PaymentVariantID,
		)
		slog.Info("checkout session flow enabled")
	}

	// 7. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのレート値はreq/min単位なのでreq/secに変換する
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.GenerationRate = rate.Limit(float64(cfg.RateLimitGeneration) / 60.0)
	rateLimiterCfg.GenerationBurst = cfg.RateLimitGeneration
	rateLimiterCfg.TrustProxy = cfg.TrustProxy
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		HealthChecker: db,

		ProfileService:  creditService,
		ResearchService: researchService,
		HistoryService:  historyService,

		WebhookVerifier: verifier,
		CreditGranter:   creditService,
		CheckoutClient:  checkoutClient,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
		// レポート生成は外部APIの応答待ちが長いため、WriteTimeoutは
		// 生成フローの制限時間より余裕を持たせる
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// メトリクス専用リスナー（外部公開しないポート）
	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      metrics.SetupMetricsRoute(registry),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("metrics server starting",
			slog.String("addr", metricsServer.Addr),
		)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := metricsServer.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れ決済イベントのクリーンアップジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. クリーンアップジョブの初期化
	eventRepo := repository.NewPostgresPaymentEventRepo(db)
	cleanupJob := cleanup.NewJob(eventRepo, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Duration("payment_event_ttl", cfg.PaymentEventTTL),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
