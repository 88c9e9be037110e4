package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/reportify/internal/credit"
	"github.com/hitoshi/reportify/internal/metrics"
	"github.com/hitoshi/reportify/internal/model"
	"github.com/hitoshi/reportify/internal/payment"
)

// SignatureHeader はWebhookリクエストの署名を運ぶHTTPヘッダ。
const SignatureHeader = "X-Signature"

// WebhookVerifierInterface はWebhook署名の検証インターフェース。
type WebhookVerifierInterface interface {
	// Verify は生ボディと署名ヘッダの値を照合する。
	Verify(rawBody []byte, signature string) bool
}

// CreditGranterInterface は決済ハンドラーが必要とするクレジット付与インターフェース。
type CreditGranterInterface interface {
	// Grant はクレジットを加算しプランを更新する。再配送時はapplied=falseを返す。
	Grant(ctx context.Context, userID string, amount int, eventID string) (newCredits int, applied bool, err error)
}

// CheckoutClientInterface はチェックアウトセッション型決済フローのクライアントインターフェース。
type CheckoutClientInterface interface {
	// CreateCheckout はチェックアウトセッションを作成し決済ページのURLを返す。
	CreateCheckout(ctx context.Context, userID string) (string, error)
	// GetSession はセッションIDでチェックアウトセッションを取得する。
	GetSession(ctx context.Context, sessionID string) (*payment.Session, error)
}

// PaymentHandler は決済関連のHTTPハンドラー。
// Webhook型とチェックアウトセッション型の両フローを提供し、
// どちらも同一のクレジット付与パス（CreditGranterInterface.Grant）に合流する。
type PaymentHandler struct {
	verifier WebhookVerifierInterface
	granter  CreditGranterInterface
	checkout CheckoutClientInterface // 未設定のデプロイではnil
	metrics  metrics.Recorder
}

// NewPaymentHandler はPaymentHandlerを生成する。
// checkoutはチェックアウトセッション型フローが無効なデプロイではnilを渡す。
func NewPaymentHandler(
	verifier WebhookVerifierInterface,
	granter CreditGranterInterface,
	checkout CheckoutClientInterface,
	recorder metrics.Recorder,
) *PaymentHandler {
	return &PaymentHandler{
		verifier: verifier,
		granter:  granter,
		checkout: checkout,
		metrics:  recorder,
	}
}

// Webhook は決済プロバイダからのWebhook通知を受信する。
// 署名検証に失敗した場合のみエラーを返し、検証通過後の処理失敗は
// ログに記録した上で200を返す（プロバイダの無限リトライを避ける。
// 再配送はイベントIDの冪等性記録で安全に吸収できる）。
// POST /webhook
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("Webhookボディの読み取りに失敗しました", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidSignature,
			Message:  "リクエストボディの読み取りに失敗しました。",
			Category: "payment",
			Action:   "リクエストを再送してください。",
		})
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if !h.verifier.Verify(rawBody, signature) {
		slog.Warn("Webhook署名の検証に失敗しました",
			slog.Int("body_length", len(rawBody)),
		)
		handleServiceError(w, model.NewInvalidSignatureError())
		return
	}

	// ここから先は検証済み。処理がどう転んでも受領は返す。
	h.processWebhookEvent(r.Context(), rawBody)

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// processWebhookEvent は検証済みWebhookの本処理を行う。
// 失敗はログに記録するのみで呼び出し元へは伝播させない。
func (h *PaymentHandler) processWebhookEvent(ctx context.Context, rawBody []byte) {
	event, err := payment.ParseWebhookEvent(rawBody)
	if err != nil {
		slog.Error("Webhookイベントのパースに失敗しました", slog.String("error", err.Error()))
		return
	}

	h.metrics.RecordWebhookEvent(event.EventName)

	if event.EventName != payment.EventOrderCreated {
		slog.Info("処理対象外のWebhookイベントを受信しました",
			slog.String("event_name", event.EventName),
		)
		return
	}

	if event.UserID == "" {
		slog.Error("Webhookイベントにuser_idが含まれていません",
			slog.String("event_id", event.EventID),
		)
		return
	}

	newCredits, applied, err := h.granter.Grant(ctx, event.UserID, credit.DefaultGrantAmount, event.EventID)
	if err != nil {
		slog.Error("Webhook経由のクレジット付与に失敗しました",
			slog.String("user_id", event.UserID),
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return
	}

	if applied {
		h.metrics.RecordCreditsGranted(credit.DefaultGrantAmount)
	}

	slog.Info("Webhookイベントを処理しました",
		slog.String("user_id", event.UserID),
		slog.String("event_id", event.EventID),
		slog.Bool("applied", applied),
		slog.Int("new_credits", newCredits),
	)
}

// createCheckoutSessionRequest はチェックアウトセッション作成リクエストのボディ。
type createCheckoutSessionRequest struct {
	UserID string `json:"user_id"`
}

// CreateCheckoutSession はチェックアウトセッションを作成し決済ページのURLを返す。
// POST /create-checkout-session
func (h *PaymentHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	if h.checkout == nil {
		handleServiceError(w, model.NewPaymentNotConfiguredError())
		return
	}

	var req createCheckoutSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewMissingUserIDError())
		return
	}
	if req.UserID == "" {
		handleServiceError(w, model.NewMissingUserIDError())
		return
	}

	url, err := h.checkout.CreateCheckout(r.Context(), req.UserID)
	if err != nil {
		slog.Error("チェックアウトセッションの作成に失敗しました",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusBadGateway, &model.APIError{
			Code:     model.ErrCodePaymentNotConfigured,
			Message:  "チェックアウトセッションの作成に失敗しました。",
			Category: "payment",
			Action:   "しばらく待ってから再度お試しください。",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// VerifyPayment はチェックアウトセッションの支払い状態を照会し、
// 支払い完了であればクレジットを付与する。セッションIDを冪等性キーとして
// 使用するため、同一セッションの再照会で二重付与は発生しない。
// GET /verify-payment?session_id=...
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	if h.checkout == nil {
		handleServiceError(w, model.NewPaymentNotConfiguredError())
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeSessionNotFound,
			Message:  "session_idが指定されていません。",
			Category: "payment",
			Action:   "session_idクエリパラメータを指定してください。",
		})
		return
	}

	session, err := h.checkout.GetSession(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if session.PaymentStatus != payment.PaymentStatusPaid {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":         "pending",
			"payment_status": session.PaymentStatus,
		})
		return
	}

	if session.UserID == "" {
		slog.Error("支払い済みセッションにuser_idが含まれていません",
			slog.String("session_id", sessionID),
		)
		handleServiceError(w, model.NewMissingUserIDError())
		return
	}

	eventID := "checkout_session:" + session.ID
	newCredits, applied, err := h.granter.Grant(r.Context(), session.UserID, credit.DefaultGrantAmount, eventID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if applied {
		h.metrics.RecordCreditsGranted(credit.DefaultGrantAmount)
	}
	h.metrics.RecordWebhookEvent("checkout_session_verified")

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"new_credits": newCredits,
	})
}
