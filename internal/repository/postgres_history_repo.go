package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/reportify/internal/model"
)

// PostgresHistoryRepo はPostgreSQLを使用した生成履歴リポジトリ。
// sourcesカラムはTEXT[]型で、pq.Arrayで読み書きする。
type PostgresHistoryRepo struct {
	db *sql.DB
}

// NewPostgresHistoryRepo はPostgresHistoryRepoを生成する。
func NewPostgresHistoryRepo(db *sql.DB) *PostgresHistoryRepo {
	return &PostgresHistoryRepo{db: db}
}

// Create は履歴エントリを追加する。
func (r *PostgresHistoryRepo) Create(ctx context.Context, entry *model.HistoryEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO research_history (id, user_id, topic, report, sources, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.UserID, entry.Topic, entry.Report, pq.Array(entry.Sources), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	return nil
}

// ListByUserID は指定ユーザーの履歴をcreated_atの降順で取得する。
func (r *PostgresHistoryRepo) ListByUserID(ctx context.Context, userID string) ([]*model.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, topic, report, sources, created_at
		 FROM research_history
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := []*model.HistoryEntry{}
	for rows.Next() {
		entry := &model.HistoryEntry{}
		if err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.Topic, &entry.Report,
			pq.Array(&entry.Sources), &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}

	return entries, nil
}

// compile-time interface check
var _ HistoryRepository = (*PostgresHistoryRepo)(nil)
