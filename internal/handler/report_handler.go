package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/reportify/internal/model"
	"github.com/hitoshi/reportify/internal/research"
)

// ResearchServiceInterface はレポート生成ハンドラーが必要とするサービスインターフェース。
type ResearchServiceInterface interface {
	// GenerateReport はクレジット確認→生成→保存→減算のフルフローを実行する。
	GenerateReport(ctx context.Context, userID, topic string) (*research.GenerateOutput, error)
}

// ReportHandler はレポート生成のHTTPハンドラー。
type ReportHandler struct {
	service ResearchServiceInterface
}

// NewReportHandler はReportHandlerを生成する。
func NewReportHandler(service ResearchServiceInterface) *ReportHandler {
	return &ReportHandler{service: service}
}

// generateRequest はレポート生成リクエストのボディ。
type generateRequest struct {
	Topic  string `json:"topic"`
	UserID string `json:"user_id"`
}

// generateResponse はレポート生成のAPIレスポンス。
type generateResponse struct {
	Status      string   `json:"status"`
	Report      string   `json:"report"`
	Sources     []string `json:"sources"`
	CreditsLeft int      `json:"credits_left"`
	GeneratedAt string   `json:"generated_at"`
	UserID      string   `json:"user_id"`
}

// Generate はレポート生成リクエストを処理する。
// 残高不足は402、生成失敗は500、入力不正は400/422を返す。
// POST /generate
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	output, err := h.service.GenerateReport(r.Context(), req.UserID, req.Topic)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Status:      output.Status,
		Report:      output.Report,
		Sources:     output.Sources,
		CreditsLeft: output.CreditsLeft,
		GeneratedAt: output.GeneratedAt.UTC().Format(time.RFC3339),
		UserID:      output.UserID,
	})
}
