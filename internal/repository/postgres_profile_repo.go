package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/reportify/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
// クレジットの減算・加算はいずれも単一のUPDATE文で行い、
// 読み取り後書き込みの競合（lost update）を排除する。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error) {
	profile := &model.UserProfile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, credits, tier, created_at, updated_at FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(&profile.UserID, &profile.Credits, &profile.Tier, &profile.CreatedAt, &profile.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by user ID: %w", err)
	}

	return profile, nil
}

// EnsureProfile はプロフィールが存在しなければ初期値で作成し、存在すればそのまま返す。
// INSERT ... ON CONFLICT DO NOTHINGにより、同一ユーザーの同時初回アクセスでも
// 行は1つしか作られない。
func (r *PostgresProfileRepo) EnsureProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, credits, tier)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, model.InitialCredits, model.TierFree,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}

	profile, err := r.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		// INSERT直後のSELECTで行が見えないことは通常ないが、念のため検出する
		return nil, fmt.Errorf("profile not visible after ensure: %s", userID)
	}

	return profile, nil
}

// DeductCredit は残高が正の場合にのみクレジットを1減算する。
// WHERE credits > 0 の条件付きUPDATEにより、同時リクエストが同じ残高を
// 読んで二重減算する競合や、残高の負値化を防ぐ。
func (r *PostgresProfileRepo) DeductCredit(ctx context.Context, userID string) (int, bool, error) {
	var newCredits int
	err := r.db.QueryRowContext(ctx,
		`UPDATE user_profiles
		 SET credits = credits - 1, updated_at = now()
		 WHERE user_id = $1 AND credits > 0
		 RETURNING credits`,
		userID,
	).Scan(&newCredits)

	if err == sql.ErrNoRows {
		// プロフィールが存在しないか、残高が0
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to deduct credit: %w", err)
	}

	return newCredits, true, nil
}

// GrantCredits はクレジットを加算し、プランを指定のtierに更新する。
// プロフィールが存在しない場合は作成せずok=falseを返す（付与は新規作成しない）。
func (r *PostgresProfileRepo) GrantCredits(ctx context.Context, userID string, amount int, tier model.Tier) (int, bool, error) {
	var newCredits int
	err := r.db.QueryRowContext(ctx,
		`UPDATE user_profiles
		 SET credits = credits + $2, tier = $3, updated_at = now()
		 WHERE user_id = $1
		 RETURNING credits`,
		userID, amount, tier,
	).Scan(&newCredits)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to grant credits: %w", err)
	}

	return newCredits, true, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
