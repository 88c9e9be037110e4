// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, credit, generation, payment, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidTopic         = "INVALID_TOPIC"
	ErrCodeMissingUserID        = "MISSING_USER_ID"
	ErrCodeInsufficientCredits  = "INSUFFICIENT_CREDITS"
	ErrCodeGenerationFailed     = "GENERATION_FAILED"
	ErrCodeInvalidSignature     = "INVALID_SIGNATURE"
	ErrCodeProfileNotFound      = "PROFILE_NOT_FOUND"
	ErrCodePaymentNotConfigured = "PAYMENT_NOT_CONFIGURED"
	ErrCodeSessionNotFound      = "SESSION_NOT_FOUND"
)

// TopicMinLength はリサーチトピックの最小文字数。
const TopicMinLength = 5

// TopicMaxLength はリサーチトピックの最大文字数。
const TopicMaxLength = 200

// NewInvalidTopicError はトピック長が範囲外の場合のエラーを生成する。
func NewInvalidTopicError(length int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTopic,
		Message:  fmt.Sprintf("トピックの長さが不正です: %d文字", length),
		Category: "validation",
		Action:   fmt.Sprintf("トピックは%d文字以上%d文字以下で指定してください。", TopicMinLength, TopicMaxLength),
	}
}

// NewMissingUserIDError はユーザーIDが空の場合のエラーを生成する。
func NewMissingUserIDError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingUserID,
		Message:  "ユーザーIDが指定されていません。",
		Category: "validation",
		Action:   "user_idを指定してリクエストしてください。",
	}
}

// NewInsufficientCreditsError はクレジット残高不足エラーを生成する。
func NewInsufficientCreditsError() *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientCredits,
		Message:  "クレジット残高が不足しています。",
		Category: "credit",
		Action:   "プランをアップグレードするか、クレジットを購入してください。",
	}
}

// NewGenerationFailedError はレポート生成失敗エラーを生成する。
func NewGenerationFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeGenerationFailed,
		Message:  fmt.Sprintf("レポートの生成に失敗しました: %s", reason),
		Category: "generation",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidSignatureError はWebhook署名検証失敗エラーを生成する。
func NewInvalidSignatureError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSignature,
		Message:  "Webhook署名の検証に失敗しました。",
		Category: "payment",
		Action:   "正しい共有シークレットで署名されたリクエストを送信してください。",
	}
}

// NewProfileNotFoundError はプロフィールが存在しない場合のエラーを生成する。
// クレジット付与の対象ユーザーが見つからない場合に使用する。
func NewProfileNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("ユーザープロフィールが見つかりません: %s", userID),
		Category: "credit",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewPaymentNotConfiguredError は決済プロバイダが未設定の場合のエラーを生成する。
func NewPaymentNotConfiguredError() *APIError {
	return &APIError{
		Code:     ErrCodePaymentNotConfigured,
		Message:  "決済プロバイダが設定されていません。",
		Category: "payment",
		Action:   "決済プロバイダのAPIキーを設定してから再度お試しください。",
	}
}

// NewSessionNotFoundError はチェックアウトセッションが見つからない場合のエラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("チェックアウトセッションが見つかりません: %s", sessionID),
		Category: "payment",
		Action:   "セッションIDを確認してください。",
	}
}
