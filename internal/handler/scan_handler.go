package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/homescan/internal/middleware"
	"github.com/hitoshi/homescan/internal/model"
	"github.com/hitoshi/homescan/internal/scan"
)

const (
	// DefaultMaxUploadBytes はスキャン1リクエストあたりのアップロード上限。
	DefaultMaxUploadBytes = 32 << 20
	// multipartMemoryBytes はParseMultipartFormがメモリに保持する上限。超過分は一時ファイルに退避される。
	multipartMemoryBytes = 8 << 20

	defaultListLimit = 20
	maxListLimit     = 100
)

// ScanServiceInterface はスキャンハンドラーが必要とするサービスインターフェース。
type ScanServiceInterface interface {
	Create(ctx context.Context, accountID, questionID string, images [][]byte) (*model.Scan, error)
	Get(ctx context.Context, accountID, scanID string) (*model.Scan, error)
	List(ctx context.Context, accountID string, limit int) ([]*model.Scan, error)
}

// ScanHandler はスキャン関連のHTTPハンドラー。
type ScanHandler struct {
	service        ScanServiceInterface
	maxUploadBytes int64
}

// NewScanHandler はScanHandlerを生成する。maxUploadBytesが0以下の場合はデフォルト値を使う。
func NewScanHandler(service ScanServiceInterface, maxUploadBytes int64) *ScanHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &ScanHandler{service: service, maxUploadBytes: maxUploadBytes}
}

// scanResponse はスキャン結果のAPIレスポンス。
// 画像が1枚の場合のみrawに単一の結果を入れる。
type scanResponse struct {
	OK         bool      `json:"ok"`
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	QuestionID string    `json:"question_id"`
	Raws       []string  `json:"raws"`
	Raw        *string   `json:"raw,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// scanListResponse はスキャン一覧のAPIレスポンス。
type scanListResponse struct {
	Items []scanResponse `json:"items"`
}

func toScanResponse(s *model.Scan) scanResponse {
	resp := scanResponse{
		OK:         true,
		ID:         s.ID,
		Model:      s.Model,
		QuestionID: s.QuestionID,
		Raws:       s.Raws,
		CreatedAt:  s.CreatedAt,
	}
	if resp.Raws == nil {
		resp.Raws = []string{}
	}
	if len(s.Raws) == 1 {
		raw := s.Raws[0]
		resp.Raw = &raw
	}
	return resp
}

// CreateScan はアップロードされた画像を解析し、結果を保存する。
// POST /api/scans (multipart: files または file, question_id)
func (h *ScanHandler) CreateScan(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		middleware.WriteMissingBearer(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeAPIError(w, http.StatusRequestEntityTooLarge, model.NewInvalidRequestError("Upload too large"))
			return
		}
		writeAPIError(w, http.StatusBadRequest, model.NewInvalidRequestError("Invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var headers []*multipart.FileHeader
	headers = append(headers, r.MultipartForm.File["files"]...)
	headers = append(headers, r.MultipartForm.File["file"]...)

	images := make([][]byte, 0, len(headers))
	for _, fh := range headers {
		data, err := readFormFile(fh)
		if err != nil {
			slog.Warn("failed to read uploaded file",
				slog.String("filename", fh.Filename),
				slog.String("error", err.Error()),
			)
			writeAPIError(w, http.StatusBadRequest, model.NewInvalidRequestError("Failed to read uploaded file"))
			return
		}
		images = append(images, data)
	}

	result, err := h.service.Create(r.Context(), accountID, r.FormValue("question_id"), images)
	if err != nil {
		writeScanError(w, err, "")
		return
	}

	writeJSON(w, http.StatusOK, toScanResponse(result))
}

// ListScans はアカウントのスキャン一覧を返す。
// GET /api/scans?limit=20
func (h *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		middleware.WriteMissingBearer(w)
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeAPIError(w, http.StatusBadRequest, model.NewInvalidRequestError("limit must be a positive integer"))
			return
		}
		limit = min(n, maxListLimit)
	}

	scans, err := h.service.List(r.Context(), accountID, limit)
	if err != nil {
		writeScanError(w, err, "")
		return
	}

	items := make([]scanResponse, 0, len(scans))
	for _, s := range scans {
		items = append(items, toScanResponse(s))
	}
	writeJSON(w, http.StatusOK, scanListResponse{Items: items})
}

// GetScan はアカウントが所有するスキャンを返す。
// GET /api/scans/{id}
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		middleware.WriteMissingBearer(w)
		return
	}

	scanID := chi.URLParam(r, "id")
	result, err := h.service.Get(r.Context(), accountID, scanID)
	if err != nil {
		writeScanError(w, err, scanID)
		return
	}

	writeJSON(w, http.StatusOK, toScanResponse(result))
}

// writeScanError はスキャンサービスのエラーを統一エラーフォーマットで書き込む。
func writeScanError(w http.ResponseWriter, err error, scanID string) {
	switch {
	case errors.Is(err, scan.ErrNoImages):
		writeAPIError(w, http.StatusBadRequest, model.NewNoFilesError())
	case errors.Is(err, scan.ErrNotFound):
		writeAPIError(w, http.StatusNotFound, model.NewScanNotFoundError(scanID))
	case errors.Is(err, scan.ErrAnalysisFailed):
		writeAPIError(w, http.StatusBadGateway, model.NewAnalysisFailedError())
	case errors.Is(err, scan.ErrStoreUnavailable):
		slog.Error("scan store unavailable", slog.String("error", err.Error()))
		writeAPIError(w, http.StatusServiceUnavailable, model.NewStoreUnavailableError())
	default:
		slog.Error("scan request failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
