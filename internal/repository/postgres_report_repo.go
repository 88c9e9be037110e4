package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/reportify/internal/model"
)

// PostgresReportRepo はPostgreSQLを使用したレポートリポジトリ。
type PostgresReportRepo struct {
	db *sql.DB
}

// NewPostgresReportRepo はPostgresReportRepoを生成する。
func NewPostgresReportRepo(db *sql.DB) *PostgresReportRepo {
	return &PostgresReportRepo{db: db}
}

// Create はレポートレコードを作成する。
func (r *PostgresReportRepo) Create(ctx context.Context, report *model.Report) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reports (id, user_id, topic, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		report.ID, report.UserID, report.Topic, report.Content, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	return nil
}

// compile-time interface check
var _ ReportRepository = (*PostgresReportRepo)(nil)
