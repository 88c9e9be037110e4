package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/reportify/internal/model"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	// EnsureProfile はプロフィールが存在しなければ初期値（credits=3, tier=Free）で
	// 作成して返す。
	EnsureProfile(ctx context.Context, userID string) (*model.UserProfile, error)
}

// ProfileHandler はユーザープロフィールのHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// profileResponse はプロフィール取得のAPIレスポンス。
type profileResponse struct {
	Credits int    `json:"credits"`
	Tier    string `json:"tier"`
}

// GetProfile はユーザーのクレジット残高とプランを返す。
// 未登録のユーザーIDに対しては初期プロフィールを作成して返す。
// 同じIDで2回呼んでも同一の行を参照する（行は1つしか作られない）。
// GET /profile/{user_id}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingUserIDError())
		return
	}

	profile, err := h.service.EnsureProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		Credits: profile.Credits,
		Tier:    string(profile.Tier),
	})
}
