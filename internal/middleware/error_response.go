package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hitoshi/homescan/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// bearerRealm はWWW-Authenticateチャレンジのrealm。
const bearerRealm = "homescan"

// WriteMissingBearer はベアラートークンが付与されていない場合の401を書き込む。
func WriteMissingBearer(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm=%q`, bearerRealm))
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError("Missing bearer token"))
}

// WriteInvalidToken は署名不正・期限切れのトークンに対する401を書き込む。
// チャレンジにerror="invalid_token"を含め、クライアントに再ログインを促す。
func WriteInvalidToken(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm=%q, error="invalid_token"`, bearerRealm))
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError("Invalid token"))
}
