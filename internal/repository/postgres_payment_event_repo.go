package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/reportify/internal/model"
)

// PostgresPaymentEventRepo はPostgreSQLを使用した決済イベント記録リポジトリ。
// イベントIDを主キーとするINSERTの成否で冪等性を判定する。
type PostgresPaymentEventRepo struct {
	db *sql.DB
}

// NewPostgresPaymentEventRepo はPostgresPaymentEventRepoを生成する。
func NewPostgresPaymentEventRepo(db *sql.DB) *PostgresPaymentEventRepo {
	return &PostgresPaymentEventRepo{db: db}
}

// Record はイベントを記録する。同一イベントIDがすでに記録済みの場合はfalseを返す。
// ON CONFLICT DO NOTHINGにより、同一イベントの同時再配送でも記録は1件に収束する。
func (r *PostgresPaymentEventRepo) Record(ctx context.Context, event *model.PaymentEvent) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_events (event_id, user_id, credits_granted, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (event_id) DO NOTHING`,
		event.EventID, event.UserID, event.CreditsGranted, event.CreatedAt, event.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record payment event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// DeleteExpired は有効期限を過ぎたイベント記録を削除し、削除件数を返す。
func (r *PostgresPaymentEventRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM payment_events WHERE expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired payment events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// compile-time interface check
var _ PaymentEventRepository = (*PostgresPaymentEventRepo)(nil)
