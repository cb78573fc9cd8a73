package handler

import (
	"net/http"
)

// AdminConfigView は管理者に公開する設定値。シークレットは含めない。
type AdminConfigView struct {
	OAuthEnabled    bool   `json:"oauth_enabled"`
	FrontendURL     string `json:"frontend_url"`
	DefaultNextPath string `json:"default_next_path"`
	TokenExpDays    int    `json:"token_exp_days"`
	DevSecret       bool   `json:"dev_secret"`
	OllamaModel     string `json:"ollama_model"`
	RateLimitScan   int    `json:"rate_limit_scan"`
}

// AdminHandler は管理者向けのHTTPハンドラー。RequireRole(admin)の内側に配置する。
type AdminHandler struct {
	view AdminConfigView
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(view AdminConfigView) *AdminHandler {
	return &AdminHandler{view: view}
}

// Config は稼働中の設定の概要を返す。
// GET /api/admin/config
func (h *AdminHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view)
}
