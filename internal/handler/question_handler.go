package handler

import (
	"net/http"

	"github.com/hitoshi/homescan/internal/scan"
)

// questionsResponse は質問一覧のAPIレスポンス。
type questionsResponse struct {
	Default string                 `json:"default"`
	Items   []scan.QuestionPreview `json:"items"`
}

// QuestionHandler は質問プロンプト一覧のHTTPハンドラー。
type QuestionHandler struct {
	catalog *scan.Catalog
}

// NewQuestionHandler はQuestionHandlerを生成する。
func NewQuestionHandler(catalog *scan.Catalog) *QuestionHandler {
	return &QuestionHandler{catalog: catalog}
}

// ListQuestions は選択可能な質問とデフォルトの質問IDを返す。
// GET /api/questions
func (h *QuestionHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, questionsResponse{
		Default: h.catalog.DefaultID(),
		Items:   h.catalog.Previews(),
	})
}
