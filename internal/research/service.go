// Package research はレポート生成リクエストのオーケストレーションを提供する。
// クレジット確認 → レポート生成 → レポート保存 → クレジット減算の順序を統括し、
// 「クレジットは生成成功後にのみ減算される」という台帳の不変条件を所有する。
package research

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/reportify/internal/metrics"
	"github.com/hitoshi/reportify/internal/model"
	"github.com/hitoshi/reportify/internal/repository"
	"github.com/hitoshi/reportify/internal/security"
)

// CreditLedger はオーケストレーションが必要とするクレジット台帳のインターフェース。
type CreditLedger interface {
	// EnsureProfile はプロフィールが存在しなければ初期値で作成して返す。
	EnsureProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	// Deduct はクレジットを1減算し、減算後の残高を返す。
	Deduct(ctx context.Context, userID string) (int, error)
}

// ReportGenerator はレポートジェネレータのインターフェース。
type ReportGenerator interface {
	Generate(ctx context.Context, topic string) *model.GenerationResult
}

// Service はレポート生成リクエストのオーケストレーション層。
type Service struct {
	ledger    CreditLedger
	generator ReportGenerator
	reports   repository.ReportRepository
	sanitizer security.ReportSanitizerService
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	ledger CreditLedger,
	generator ReportGenerator,
	reports repository.ReportRepository,
	sanitizer security.ReportSanitizerService,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		ledger:    ledger,
		generator: generator,
		reports:   reports,
		sanitizer: sanitizer,
		recorder:  recorder,
		logger:    logger,
	}
}

// GenerateOutput はレポート生成リクエストの結果。
type GenerateOutput struct {
	Status      string
	Report      string
	Sources     []string
	CreditsLeft int
	GeneratedAt time.Time
	UserID      string
}

// GenerateReport はレポート生成のフルフローを実行する。
// フロー: 入力検証 → プロフィール確保・残高チェック → 生成 → サニタイズ →
// レポート保存 → クレジット減算。各ステップの失敗は以降を短絡する。
//
// 順序の不変条件: クレジットの減算は生成成功かつレポート保存成功の後にのみ行う。
// 生成失敗・保存失敗はクレジットを消費しない。
// 減算は条件付きUPDATEのため、同時リクエストで残高が尽きた場合は
// このステップでもInsufficientCreditsになりうる（その場合レポートは保存済みだが課金されない）。
func (s *Service) GenerateReport(ctx context.Context, userID, topic string) (*GenerateOutput, error) {
	// 1. 入力検証
	if userID == "" {
		return nil, model.NewMissingUserIDError()
	}
	if length := utf8.RuneCountInString(topic); length < model.TopicMinLength || length > model.TopicMaxLength {
		return nil, model.NewInvalidTopicError(length)
	}

	// 2. プロフィール確保と残高の事前チェック
	profile, err := s.ledger.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.Credits <= 0 {
		return nil, model.NewInsufficientCreditsError()
	}

	// 3. レポート生成
	start := time.Now()
	result := s.generator.Generate(ctx, topic)
	s.recorder.RecordGenerationLatency(time.Since(start))

	if result.Status == model.GenerationError {
		s.recorder.RecordGenerationFailure("generation")
		return nil, model.NewGenerationFailedError(result.Report)
	}

	// 4. サニタイズと保存
	content := s.sanitizer.Sanitize(result.Report)

	now := time.Now().UTC()
	report := &model.Report{
		ID:        uuid.New().String(),
		UserID:    userID,
		Topic:     topic,
		Content:   content,
		CreatedAt: now,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		// 保存に失敗した場合はクレジットを消費しない
		s.recorder.RecordGenerationFailure("persistence")
		return nil, fmt.Errorf("レポートの保存に失敗しました: %w", err)
	}

	// 5. クレジット減算（生成成功・保存成功の後にのみ）
	newCredits, err := s.ledger.Deduct(ctx, userID)
	if err != nil {
		s.logger.Warn("レポート保存後のクレジット減算に失敗しました",
			slog.String("user_id", userID),
			slog.String("report_id", report.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.recorder.RecordGenerationSuccess()
	s.recorder.RecordCreditsConsumed(1)

	s.logger.Info("レポートを生成しました",
		slog.String("user_id", userID),
		slog.String("report_id", report.ID),
		slog.Int("credits_left", newCredits),
	)

	return &GenerateOutput{
		Status:      string(result.Status),
		Report:      content,
		Sources:     result.Sources,
		CreditsLeft: newCredits,
		GeneratedAt: now,
		UserID:      userID,
	}, nil
}
