// Package payment は決済プロバイダ連携を提供する。
// Webhook署名の検証・イベントのパースと、チェックアウトセッション型の
// 決済フロー用クライアントを含む。デプロイごとにどちらか一方を有効にする想定。
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// EventOrderCreated は注文確定を表すWebhookイベント名。
// このイベントの受信時にクレジット付与が行われる。
const EventOrderCreated = "order_created"

// WebhookVerifier は受信Webhookペイロードの署名を検証する。
// 署名は共有シークレットによる生ボディのHMAC-SHA256（16進表現）。
type WebhookVerifier struct {
	secret []byte
}

// NewWebhookVerifier はWebhookVerifierを生成する。
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret)}
}

// Verify は生ボディと署名ヘッダの値を照合する。
// 比較はタイミング攻撃を避けるため定数時間で行う。
// 署名が空の場合は常にfalseを返す。
func (v *WebhookVerifier) Verify(rawBody []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)
	digest := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(digest), []byte(signature))
}

// WebhookEvent は検証済みWebhookペイロードから抽出したイベント情報。
type WebhookEvent struct {
	// EventName はプロバイダのイベント種別（例: order_created）。
	EventName string
	// EventID は冪等性キーとして使用するプロバイダのイベント識別子。
	// ペイロードに識別子が含まれない場合は生ボディのSHA-256にフォールバックする。
	EventID string
	// UserID はチェックアウト時にフロントエンドが埋め込んだユーザーID。
	// ペイロードに含まれない場合は空文字列。
	UserID string
}

// webhookPayload はWebhookペイロードのワイヤ形式。
type webhookPayload struct {
	Meta struct {
		EventName  string `json:"event_name"`
		CustomData struct {
			UserID string `json:"user_id"`
		} `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ParseWebhookEvent は検証済みの生ボディをパースしてWebhookEventを返す。
// 署名検証前のボディに対して呼び出してはならない。
func ParseWebhookEvent(rawBody []byte) (*WebhookEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("Webhookペイロードのパースに失敗しました: %w", err)
	}

	eventID := payload.Data.ID
	if eventID == "" {
		// プロバイダがdata.idを含めない場合は生ボディのハッシュをキーにする。
		// 同一ボディの再配送は同一キーに収束する。
		sum := sha256.Sum256(rawBody)
		eventID = hex.EncodeToString(sum[:])
	}

	return &WebhookEvent{
		EventName: payload.Meta.EventName,
		EventID:   fmt.Sprintf("%s:%s", payload.Meta.EventName, eventID),
		UserID:    payload.Meta.CustomData.UserID,
	}, nil
}
