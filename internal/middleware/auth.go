// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hitoshi/homescan/internal/auth"
	"github.com/hitoshi/homescan/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストに検証済みクレームを格納するためのキー。
var claimsContextKey = contextKey("claims")

// Authenticator はAuthorizationヘッダーの検証に必要なインターフェース。
// auth.Gateが実装する。
type Authenticator interface {
	Authenticate(headerValue string) (*auth.Claims, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのベアラートークンを検証し、
// クレームをリクエストコンテキストに注入するミドルウェアを返す。
// ヘッダー欠落・トークン不正には401を返す。
func NewAuthMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticator.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				if errors.Is(err, auth.ErrMissingBearer) {
					WriteMissingBearer(w)
					return
				}
				WriteInvalidToken(w)
				return
			}

			setLogAccountID(r.Context(), claims.AccountID())
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole はクレームのロールが許可リストに含まれない場合に403を返すミドルウェアを返す。
// NewAuthMiddlewareの後に配置する。
func RequireRole(roles ...model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			if err := auth.RequireRole(claims, roles...); err != nil {
				if errors.Is(err, auth.ErrForbidden) {
					WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
					return
				}
				WriteMissingBearer(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext はリクエストコンテキストから検証済みクレームを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*auth.Claims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	if !ok || claims == nil {
		return nil, fmt.Errorf("claims not found in context")
	}
	return claims, nil
}

// AccountIDFromContext はリクエストコンテキストからアカウントIDを取得する。
func AccountIDFromContext(ctx context.Context) (string, error) {
	claims, err := ClaimsFromContext(ctx)
	if err != nil {
		return "", err
	}
	if claims.AccountID() == "" {
		return "", fmt.Errorf("account ID not found in context")
	}
	return claims.AccountID(), nil
}

// ContextWithClaims はコンテキストにクレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
