package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/homescan/internal/middleware"
	"github.com/hitoshi/homescan/internal/model"
)

// maxJSONBodyBytes はJSONリクエストボディの読み取り上限。
const maxJSONBodyBytes = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIError は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIError(w http.ResponseWriter, status int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, status, apiErr)
}

// decodeJSONBody はリクエストボディをJSONとしてデコードする。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
