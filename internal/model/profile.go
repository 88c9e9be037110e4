// Package model はドメインモデルを定義する。
package model

import "time"

// Tier はユーザーの契約プランを表す。
type Tier string

const (
	// TierFree は無料プラン。初回タッチ時のデフォルト。
	TierFree Tier = "Free"
	// TierPro は有料プラン。決済イベントの適用時にのみ設定される。
	TierPro Tier = "Pro"
)

// InitialCredits は新規プロフィール作成時に付与されるクレジット数。
const InitialCredits = 3

// UserProfile はユーザーごとのクレジット残高とプランを表す。
// user_idは外部認証プロバイダが発行する不透明な識別子。
// creditsは非負の整数で、レポート生成成功時にのみ減算され、
// 検証済み決済イベントによってのみ加算される。
type UserProfile struct {
	UserID    string
	Credits   int
	Tier      Tier
	CreatedAt time.Time
	UpdatedAt time.Time
}
