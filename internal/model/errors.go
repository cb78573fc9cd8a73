package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, scan, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeStoreUnavailable   = "STORE_UNAVAILABLE"
	ErrCodeNoFiles            = "NO_FILES"
	ErrCodeAnalysisFailed     = "ANALYSIS_FAILED"
	ErrCodeScanNotFound       = "SCAN_NOT_FOUND"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディの検証エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "Check the request fields and try again.",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "Email already registered",
		Category: "auth",
		Action:   "Log in with this email or use a different one.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メールアドレスの存在有無に関わらず同一の内容を返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password",
		Category: "auth",
		Action:   "Check your email and password.",
	}
}

// NewUnauthorizedError はトークン不正・欠落エラーを生成する。
func NewUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  reason,
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Insufficient role",
		Category: "auth",
		Action:   "Ask an administrator for access.",
	}
}

// NewStoreUnavailableError はデータベース到達不能エラーを生成する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "Database unavailable, try again",
		Category: "system",
		Action:   "Wait a moment and retry.",
	}
}

// NewNoFilesError は画像未添付エラーを生成する。
func NewNoFilesError() *APIError {
	return &APIError{
		Code:     ErrCodeNoFiles,
		Message:  "No files uploaded",
		Category: "validation",
		Action:   "Attach at least one image.",
	}
}

// NewAnalysisFailedError は解析モデル呼び出しの失敗エラーを生成する。
func NewAnalysisFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAnalysisFailed,
		Message:  "Failed to query the analysis model",
		Category: "scan",
		Action:   "Wait a moment and retry.",
	}
}

// NewScanNotFoundError はスキャン未検出エラーを生成する。
func NewScanNotFoundError(scanID string) *APIError {
	return &APIError{
		Code:     ErrCodeScanNotFound,
		Message:  fmt.Sprintf("Scan not found: %s", scanID),
		Category: "scan",
		Action:   "Check the scan ID.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "Wait a moment and retry.",
	}
}
