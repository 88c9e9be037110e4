// Package credit はクレジット台帳のドメインロジックを提供する。
// 残高の減算・加算はリポジトリの条件付きUPDATEに委譲し、
// サービス層では読み取り後書き込みを行わない。
package credit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/reportify/internal/model"
	"github.com/hitoshi/reportify/internal/repository"
)

// DefaultGrantAmount は決済イベント1件あたりの付与クレジット数。
const DefaultGrantAmount = 50

// Service はクレジット台帳のサービス層。
type Service struct {
	profiles repository.ProfileRepository
	events   repository.PaymentEventRepository
	eventTTL time.Duration
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// eventTTLは決済イベント冪等性レコードの保持期間。
func NewService(
	profiles repository.ProfileRepository,
	events repository.PaymentEventRepository,
	eventTTL time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		profiles: profiles,
		events:   events,
		eventTTL: eventTTL,
		logger:   logger,
	}
}

// EnsureProfile はプロフィールが存在しなければ初期値で作成し、存在すればそのまま返す。
func (s *Service) EnsureProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	profile, err := s.profiles.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの確保に失敗しました: %w", err)
	}
	return profile, nil
}

// Deduct はクレジットを1減算し、減算後の残高を返す。
// 残高が0の場合やプロフィールが存在しない場合は減算せず
// InsufficientCreditsエラーを返す。
func (s *Service) Deduct(ctx context.Context, userID string) (int, error) {
	newCredits, ok, err := s.profiles.DeductCredit(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("クレジットの減算に失敗しました: %w", err)
	}
	if !ok {
		return 0, model.NewInsufficientCreditsError()
	}
	return newCredits, nil
}

// Grant は検証済み決済イベントに基づきクレジットを加算し、プランをProに更新する。
// eventIDを冪等性キーとして記録し、同一イベントの再配送では加算を行わず
// 現在の残高をそのまま返す（applied=false）。
// 対象プロフィールが存在しない場合は作成せずProfileNotFoundエラーを返す。
// その場合イベントIDは消費されないため、プロフィール作成後の再配送で付与できる。
func (s *Service) Grant(ctx context.Context, userID string, amount int, eventID string) (newCredits int, applied bool, err error) {
	// プロフィールの存在確認は冪等性レコードの記録より先に行う。
	// 存在しないユーザーのイベントIDをここで消費してしまうと、
	// プロフィール作成後の再配送でも二度と付与できなくなる。
	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		return 0, false, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return 0, false, model.NewProfileNotFoundError(userID)
	}

	now := time.Now()
	inserted, err := s.events.Record(ctx, &model.PaymentEvent{
		EventID:        eventID,
		UserID:         userID,
		CreditsGranted: amount,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.eventTTL),
	})
	if err != nil {
		return 0, false, fmt.Errorf("決済イベントの記録に失敗しました: %w", err)
	}

	if !inserted {
		// 再配送されたイベント。加算は行わず現在の残高を返す。
		s.logger.Info("決済イベントの再配送を検出しました",
			slog.String("event_id", eventID),
			slog.String("user_id", userID),
		)
		return profile.Credits, false, nil
	}

	newCredits, ok, err := s.profiles.GrantCredits(ctx, userID, amount, model.TierPro)
	if err != nil {
		return 0, false, fmt.Errorf("クレジットの加算に失敗しました: %w", err)
	}
	if !ok {
		return 0, false, model.NewProfileNotFoundError(userID)
	}

	s.logger.Info("クレジットを付与しました",
		slog.String("user_id", userID),
		slog.Int("amount", amount),
		slog.Int("new_credits", newCredits),
	)

	return newCredits, true, nil
}
