package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/reportify/internal/model"
)

// HistoryServiceInterface は履歴ハンドラーが必要とするサービスインターフェース。
type HistoryServiceInterface interface {
	// Save は履歴エントリを保存して返す。
	Save(ctx context.Context, userID, topic, report string, sources []string) (*model.HistoryEntry, error)
	// List は指定ユーザーの履歴を新しい順で取得する。
	List(ctx context.Context, userID string) ([]*model.HistoryEntry, error)
}

// HistoryHandler は生成履歴のHTTPハンドラー。
// 履歴のエンドポイントはベストエフォートで、呼び出し元にHTTPエラーを返さない。
// 保存失敗は{status:error}に、取得失敗は空リストに縮退する
// （主フローである/generateの可用性を優先する）。
type HistoryHandler struct {
	service HistoryServiceInterface
}

// NewHistoryHandler はHistoryHandlerを生成する。
func NewHistoryHandler(service HistoryServiceInterface) *HistoryHandler {
	return &HistoryHandler{service: service}
}

// saveHistoryRequest は履歴保存リクエストのボディ。
type saveHistoryRequest struct {
	UserID  string   `json:"user_id"`
	Topic   string   `json:"topic"`
	Report  string   `json:"report"`
	Sources []string `json:"sources"`
}

// historyEntryResponse は履歴エントリのAPIレスポンス。
type historyEntryResponse struct {
	ID        string   `json:"id"`
	UserID    string   `json:"user_id"`
	Topic     string   `json:"topic"`
	Report    string   `json:"report"`
	Sources   []string `json:"sources"`
	CreatedAt string   `json:"created_at"`
}

// SaveHistory は履歴エントリを保存する。失敗してもHTTPエラーにはしない。
// POST /history
func (h *HistoryHandler) SaveHistory(w http.ResponseWriter, r *http.Request) {
	var req saveHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "error",
			"detail": "リクエストボディの解析に失敗しました",
		})
		return
	}

	entry, err := h.service.Save(r.Context(), req.UserID, req.Topic, req.Report, req.Sources)
	if err != nil {
		slog.Error("履歴の保存に失敗しました",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "error",
			"detail": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "saved",
		"data":   toHistoryEntryResponse(entry),
	})
}

// ListHistory は指定ユーザーの履歴を新しい順で返す。失敗時は空リストを返す。
// GET /history/{user_id}
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	entries, err := h.service.List(r.Context(), userID)
	if err != nil {
		slog.Error("履歴の取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusOK, []historyEntryResponse{})
		return
	}

	responses := make([]historyEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, toHistoryEntryResponse(entry))
	}

	writeJSON(w, http.StatusOK, responses)
}

// toHistoryEntryResponse はドメインモデルをAPIレスポンス形式に変換する。
func toHistoryEntryResponse(entry *model.HistoryEntry) historyEntryResponse {
	return historyEntryResponse{
		ID:        entry.ID,
		UserID:    entry.UserID,
		Topic:     entry.Topic,
		Report:    entry.Report,
		Sources:   entry.Sources,
		CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}
