package auth

import "errors"

// 認証サブシステムのエラー分類。
// ハンドラー層はerrors.Isでこれらを判定し、HTTPステータスに変換する。
var (
	// ErrEmailTaken はメールアドレスが登録済みであることを表す（409）。
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials はログイン失敗を表す（401）。
	// メールアドレス未登録とパスワード不一致を区別しない。
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthorized はトークンの欠落・不正・期限切れを表す（401）。
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden はロール不足を表す（403）。
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState はOAuth stateの欠落・不一致を表す（400）。
	ErrInvalidState = errors.New("invalid OAuth state")
	// ErrNotConfigured はOAuthプロバイダーの設定不足を表す（500）。
	ErrNotConfigured = errors.New("OAuth provider not configured")
	// ErrExchangeFailed は認可コードのトークン交換失敗を表す（400）。
	ErrExchangeFailed = errors.New("token exchange failed")
	// ErrProfileFetchFailed はプロフィール取得失敗を表す（400）。
	ErrProfileFetchFailed = errors.New("profile fetch failed")
	// ErrProfileMissingEmail はプロフィールにメールアドレスが含まれないことを表す（400）。
	ErrProfileMissingEmail = errors.New("profile missing email")
	// ErrStoreUnavailable はアカウントストアに到達できないことを表す（503）。
	ErrStoreUnavailable = errors.New("database unavailable, try again")
)
