package handler

import (
	"context"
	"net/http"
)

// Version はAPIのバージョン文字列。
const Version = "1.0.0"

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RootHandler はルートおよびヘルスチェックのHTTPハンドラー。
type RootHandler struct {
	health HealthChecker
}

// NewRootHandler はRootHandlerを生成する。
func NewRootHandler(health HealthChecker) *RootHandler {
	return &RootHandler{health: health}
}

// Root はAPIの稼働状態を返す。
// GET /
func (h *RootHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "active",
		"message": "AI Research API is running",
		"version": Version,
	})
}

// Health はDB疎通を含むヘルスチェック結果を返す。
// GET /health
func (h *RootHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.health.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"detail": "database unreachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
