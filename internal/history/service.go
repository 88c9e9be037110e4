// Package history は生成履歴のドメインロジックを提供する。
// 履歴はレポート本体とは別の追記専用ログとして保存される
// （既存コンシューマとの互換性のため、2つのシンクを意図的に維持している）。
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/reportify/internal/model"
	"github.com/hitoshi/reportify/internal/repository"
)

// Service は生成履歴のサービス層。
type Service struct {
	repo repository.HistoryRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.HistoryRepository) *Service {
	return &Service{repo: repo}
}

// Save は履歴エントリを保存して返す。
func (s *Service) Save(ctx context.Context, userID, topic, report string, sources []string) (*model.HistoryEntry, error) {
	if userID == "" {
		return nil, model.NewMissingUserIDError()
	}

	if sources == nil {
		sources = []string{}
	}

	entry := &model.HistoryEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Topic:     topic,
		Report:    report,
		Sources:   sources,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("履歴の保存に失敗しました: %w", err)
	}

	return entry, nil
}

// List は指定ユーザーの履歴を新しい順で取得する。
func (s *Service) List(ctx context.Context, userID string) ([]*model.HistoryEntry, error) {
	entries, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("履歴の取得に失敗しました: %w", err)
	}
	return entries, nil
}
