package model

import "time"

// GenerationStatus はレポート生成処理の結果種別を表す。
type GenerationStatus string

const (
	// GenerationSuccess は生成成功を示す。
	GenerationSuccess GenerationStatus = "success"
	// GenerationError は生成失敗を示す。
	GenerationError GenerationStatus = "error"
)

// SearchResult は検索コラボレータが返す1件の検索結果。
type SearchResult struct {
	Title   string
	URL     string
	Content string
}

// GenerationResult はレポートジェネレータの戻り値。
// Statusがerrorの場合、Reportにはユーザー向けのエラーメッセージが入り、
// Sourcesは空になる。
type GenerationResult struct {
	Status  GenerationStatus
	Report  string
	Sources []string
}

// Report は生成済みレポートの永続化レコード。
// 生成成功後に1回だけ作成され、以後不変。
type Report struct {
	ID        string
	UserID    string
	Topic     string
	Content   string
	CreatedAt time.Time
}

// HistoryEntry はユーザーの生成履歴エントリ。
// Reportとは別テーブルに保存される追記専用のログで、
// created_atの降順で読み出される。
type HistoryEntry struct {
	ID        string
	UserID    string
	Topic     string
	Report    string
	Sources   []string
	CreatedAt time.Time
}

// PaymentEvent は適用済み決済イベントの記録。
// 決済プロバイダのイベントIDを主キーとして保持し、
// 同一イベントの再配送による二重付与を防ぐ。
type PaymentEvent struct {
	EventID        string
	UserID         string
	CreditsGranted int
	CreatedAt      time.Time
	ExpiresAt      time.Time
}
