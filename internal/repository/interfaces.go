// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/reportify/internal/model"
)

// ProfileRepository はユーザープロフィール（クレジット残高・プラン）の永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error)

	// EnsureProfile はプロフィールが存在しなければ初期値（credits=3, tier=Free）で作成し、
	// 存在すればそのまま返す。同一ユーザーの同時初回アクセスでも行は1つしか作られない。
	EnsureProfile(ctx context.Context, userID string) (*model.UserProfile, error)

	// DeductCredit は残高が正の場合にのみクレジットを1減算する。
	// 減算後の残高と、減算が行われたかどうかを返す。
	// プロフィールが存在しない、または残高が0の場合はok=falseを返す。
	DeductCredit(ctx context.Context, userID string) (newCredits int, ok bool, err error)

	// GrantCredits はクレジットを加算し、プランを指定のtierに更新する。
	// 加算後の残高と、対象プロフィールが存在したかどうかを返す。
	// プロフィールが存在しない場合は作成せずok=falseを返す。
	GrantCredits(ctx context.Context, userID string, amount int, tier model.Tier) (newCredits int, ok bool, err error)
}

// ReportRepository は生成済みレポートの永続化インターフェース。
type ReportRepository interface {
	// Create はレポートレコードを作成する。レコードは作成後不変。
	Create(ctx context.Context, report *model.Report) error
}

// HistoryRepository は生成履歴の永続化インターフェース。
type HistoryRepository interface {
	// Create は履歴エントリを追加する。
	Create(ctx context.Context, entry *model.HistoryEntry) error

	// ListByUserID は指定ユーザーの履歴をcreated_atの降順で取得する。
	ListByUserID(ctx context.Context, userID string) ([]*model.HistoryEntry, error)
}

// PaymentEventRepository は適用済み決済イベントの記録インターフェース。
// 決済イベントの再配送による二重付与防止（冪等性キー）に使用する。
type PaymentEventRepository interface {
	// Record はイベントを記録する。同一イベントIDがすでに記録済みの場合はfalseを返す。
	Record(ctx context.Context, event *model.PaymentEvent) (inserted bool, err error)

	// DeleteExpired は有効期限を過ぎたイベント記録を削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
