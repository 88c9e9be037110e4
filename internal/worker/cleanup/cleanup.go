// Package cleanup は決済イベント冪等性レコードの自動削除ジョブを提供する。
// 保持期間（expires_at）を超過したpayment_eventsの行を日次バッチで削除する。
// 決済プロバイダのWebhook再配送は配送から数日以内に収束するため、
// 期限切れレコードを残す必要はない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredEventDeleter は期限切れ決済イベントの削除を抽象化するインターフェース。
type ExpiredEventDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Job は期限切れ決済イベントの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type Job struct {
	events ExpiredEventDeleter
	logger *slog.Logger
}

// NewJob は新しいJobを生成する。
func NewJob(events ExpiredEventDeleter, logger *slog.Logger) *Job {
	return &Job{
		events: events,
		logger: logger,
	}
}

// Run は期限切れの決済イベントレコードを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.events.DeleteExpired(ctx, start)
	if err != nil {
		j.logger.Error("決済イベントクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("決済イベントクリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("決済イベントクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start はジョブを指定間隔で定期実行する。起動直後に1回実行し、
// 以降はinterval間隔で実行する。ctxのキャンセルで停止する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップジョブが失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブが失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}
