package auth

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hitoshi/homescan/internal/model"
)

const bearerPrefix = "bearer "

// Gateが返すエラー。どちらもErrUnauthorizedとしてerrors.Isで判定できる。
var (
	ErrMissingBearer = fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	ErrInvalidToken  = fmt.Errorf("%w: invalid token", ErrUnauthorized)
)

// Gate はAuthorizationヘッダーからベアラートークンを取り出して検証する。
// ヘッダー値、現在時刻、署名鍵のみに依存する純粋な処理で、副作用を持たない。
type Gate struct {
	tokens *TokenService
}

// NewGate はGateを生成する。
func NewGate(tokens *TokenService) *Gate {
	return &Gate{tokens: tokens}
}

// Authenticate はAuthorizationヘッダー値を検証し、クレームを返す。
// ヘッダーが空、または"Bearer "（大文字小文字を区別しない）で始まらない場合はErrUnauthorizedを返す。
func (g *Gate) Authenticate(headerValue string) (*Claims, error) {
	if len(headerValue) < len(bearerPrefix) || !strings.EqualFold(headerValue[:len(bearerPrefix)], bearerPrefix) {
		return nil, ErrMissingBearer
	}

	token := strings.TrimSpace(headerValue[len(bearerPrefix):])
	if token == "" {
		return nil, ErrMissingBearer
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RequireRole はクレームのロールが許可リストに含まれない場合ErrForbiddenを返す。
func RequireRole(claims *Claims, roles ...model.Role) error {
	if claims == nil {
		return ErrUnauthorized
	}
	if !slices.Contains(roles, claims.Role) {
		return ErrForbidden
	}
	return nil
}
