// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/homescan/internal/auth"
	"github.com/hitoshi/homescan/internal/middleware"
	"github.com/hitoshi/homescan/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthNextCookie  = "oauth_next"
	// oauthCookieMaxAge はOAuthフロー用Cookieの有効期間（秒）。
	oauthCookieMaxAge = 600

	minPasswordLength = 6
	maxPasswordLength = 128
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, in auth.SignupInput) (*auth.AuthResult, error)
	Login(ctx context.Context, email, password string) (*auth.AuthResult, error)
	LoginURL(state string) (string, error)
	HandleCallback(ctx context.Context, code string) (*auth.AuthResult, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// FrontendURL はOAuthログイン成功後のリダイレクト先。
	FrontendURL string
	// DefaultNextPath はoauth_next Cookieが無い場合に渡す遷移先パス。
	DefaultNextPath string
	CookieSecure    bool
	// CallbackEnabled はコード交換に必要な設定（クライアントID・シークレット・リダイレクトURI）が揃っているか。
	CallbackEnabled bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	if config.DefaultNextPath == "" {
		config.DefaultNextPath = "/"
	}
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// signupRequest はパスワード登録リクエストのボディ。
type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse はサインアップ・ログイン成功時のレスポンス。
type authResponse struct {
	OK    bool                `json:"ok"`
	Token string              `json:"token"`
	User  model.PublicAccount `json:"user"`
}

// meResponse はトークン検証結果のレスポンス。
type meResponse struct {
	OK     bool         `json:"ok"`
	Claims *auth.Claims `json:"claims"`
}

// Signup はパスワードアカウントを登録する。
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, model.NewInvalidRequestError("Invalid request body"))
		return
	}

	if reason := validateEmail(req.Email); reason != "" {
		writeAPIError(w, http.StatusBadRequest, model.NewInvalidRequestError(reason))
		return
	}
	if reason := validatePassword(req.Password); reason != "" {
		writeAPIError(w, http.StatusBadRequest, model.NewInvalidRequestError(reason))
		return
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		writeAPIError(w, http.StatusBadRequest, model.NewInvalidRequestError("role must be one of user, itn, admin"))
		return
	}

	result, err := h.service.Signup(r.Context(), auth.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     role,
	})
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{OK: true, Token: result.Token, User: result.Account.Public()})
}

// Login はメールアドレスとパスワードでログインする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, model.NewInvalidRequestError("Invalid request body"))
		return
	}

	if reason := validateEmail(req.Email); reason != "" {
		writeAPIError(w, http.StatusBadRequest, model.NewInvalidRequestError(reason))
		return
	}
	if reason := validatePassword(req.Password); reason != "" {
		writeAPIError(w, http.StatusBadRequest, model.NewInvalidRequestError(reason))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{OK: true, Token: result.Token, User: result.Account.Public()})
}

// Me は検証済みトークンのクレームを返す。認証ミドルウェアの内側に配置する。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		middleware.WriteMissingBearer(w)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{OK: true, Claims: claims})
}

// GoogleStart はGoogle OAuthフローを開始する。
// GET /auth/google/start?next=/path
func (h *AuthHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	loginURL, err := h.service.LoginURL(state)
	if err != nil {
		if errors.Is(err, auth.ErrNotConfigured) {
			http.Error(w, auth.ErrNotConfigured.Error(), http.StatusInternalServerError)
			return
		}
		slog.Error("failed to build oauth login url", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// stateをCookieに保存（CSRF対策）
	h.setOAuthCookie(w, oauthStateCookie, state, oauthCookieMaxAge)
	if next := r.URL.Query().Get("next"); isSafeNextPath(next) {
		h.setOAuthCookie(w, oauthNextCookie, next, oauthCookieMaxAge)
	}

	http.Redirect(w, r, loginURL, http.StatusFound)
}

// GoogleCallback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	nextPath := h.config.DefaultNextPath
	if c, err := r.Cookie(oauthNextCookie); err == nil && isSafeNextPath(c.Value) {
		nextPath = c.Value
	}
	// OAuthフロー用Cookieはどの応答経路でも削除する。
	// 応答を書き込む前にSet-Cookieを積むため、以降のすべての経路に含まれる。
	h.clearOAuthCookies(w)

	if !h.config.CallbackEnabled {
		http.Error(w, auth.ErrNotConfigured.Error(), http.StatusInternalServerError)
		return
	}

	// 1. stateの検証（外部呼び出しより前に行う）
	if !validState(r) {
		slog.Warn("oauth state mismatch", slog.String("remote_addr", r.RemoteAddr))
		http.Error(w, auth.ErrInvalidState.Error(), http.StatusBadRequest)
		return
	}

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	// 3. コード交換とアカウント解決
	result, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		status, message := callbackErrorStatus(err)
		slog.Error("oauth callback failed",
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		http.Error(w, message, status)
		return
	}

	// 4. トークンを付与してフロントエンドにリダイレクト
	http.Redirect(w, r, frontendRedirectURL(h.config.FrontendURL, result.Token, nextPath), http.StatusFound)
}

// callbackErrorStatus はコールバック処理のエラーをHTTPステータスと公開メッセージに変換する。
// 公開メッセージには分類名のみを使い、内部の詳細は含めない。
func callbackErrorStatus(err error) (int, string) {
	for _, target := range []error{
		auth.ErrExchangeFailed,
		auth.ErrProfileFetchFailed,
		auth.ErrProfileMissingEmail,
	} {
		if errors.Is(err, target) {
			return http.StatusBadRequest, target.Error()
		}
	}
	switch {
	case errors.Is(err, auth.ErrNotConfigured):
		return http.StatusInternalServerError, auth.ErrNotConfigured.Error()
	case errors.Is(err, auth.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, auth.ErrStoreUnavailable.Error()
	default:
		return http.StatusInternalServerError, "authentication failed"
	}
}

// writeAuthError は認証サービスのエラーを統一エラーフォーマットで書き込む。
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		writeAPIError(w, http.StatusConflict, model.NewEmailTakenError())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeAPIError(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
	case errors.Is(err, auth.ErrStoreUnavailable):
		slog.Error("account store unavailable", slog.String("error", err.Error()))
		writeAPIError(w, http.StatusServiceUnavailable, model.NewStoreUnavailableError())
	default:
		slog.Error("auth request failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}

// setOAuthCookie はOAuthフロー用の短命Cookieを設定する。maxAgeが負の場合は削除する。
func (h *AuthHandler) setOAuthCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearOAuthCookies はoauth_stateとoauth_nextを削除する。
func (h *AuthHandler) clearOAuthCookies(w http.ResponseWriter) {
	h.setOAuthCookie(w, oauthStateCookie, "", -1)
	h.setOAuthCookie(w, oauthNextCookie, "", -1)
}

// validState はクエリのstateとCookieのstateを定数時間で比較する。
func validState(r *http.Request) bool {
	state := r.URL.Query().Get("state")
	if state == "" {
		return false
	}
	c, err := r.Cookie(oauthStateCookie)
	if err != nil || c.Value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(state), []byte(c.Value)) == 1
}

// isSafeNextPath は遷移先が同一オリジンの相対パスかを判定する。
// "//host"や"/\host"のようなスキーム相対URLは拒否する。
func isSafeNextPath(next string) bool {
	if next == "" || next[0] != '/' {
		return false
	}
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return false
	}
	return !strings.ContainsAny(next, "\r\n")
}

// frontendRedirectURL はフロントエンドのURLにtokenとnextを付与する。
func frontendRedirectURL(frontendURL, token, next string) string {
	u, err := url.Parse(frontendURL)
	if err != nil {
		return frontendURL
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("next", next)
	u.RawQuery = q.Encode()
	return u.String()
}

// validateEmail はメールアドレスの形式を検証し、不正な場合は理由を返す。
func validateEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return "email is required"
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "email is invalid"
	}
	return ""
}

// validatePassword はパスワードの長さを検証し、不正な場合は理由を返す。
func validatePassword(password string) string {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength || n > maxPasswordLength {
		return "password must be between 6 and 128 characters"
	}
	return ""
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
