package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/homescan/internal/model"
)

// DevSigningSecret はJWT_SECRET未設定時に使用する開発用の署名鍵。
// 本番環境では必ずJWT_SECRETを設定すること。
const DevSigningSecret = "dev-secret-change-me"

// DefaultTokenExpDays はトークン有効期間（日）のデフォルト値。
const DefaultTokenExpDays = 7

// Claims はセッショントークンに埋め込むクレーム。
// 認可判断に使うのはSubject（アカウントID）とRoleのみ。
type Claims struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	Name  string     `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// AccountID はトークンのsubject（アカウントID）を返す。
func (c *Claims) AccountID() string {
	return c.Subject
}

// TokenService はHS256で署名したステートレスなセッショントークンを発行・検証する。
// サーバー側にセッション状態を持たないため、どのレプリカでも検証できる。
type TokenService struct {
	secret  []byte
	expDays int
	now     func() time.Time
	isDev   bool
}

// TokenOption はTokenServiceのオプション。
type TokenOption func(*TokenService)

// WithClock は現在時刻の取得関数を差し替える。テストで有効期限を検証する際に使用する。
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService はTokenServiceを生成する。
// secretが空の場合はDevSigningSecretを、expDaysが0以下の場合はDefaultTokenExpDaysを使用する。
func NewTokenService(secret string, expDays int, opts ...TokenOption) *TokenService {
	s := &TokenService{
		secret:  []byte(secret),
		expDays: expDays,
		now:     time.Now,
	}
	if secret == "" {
		s.secret = []byte(DevSigningSecret)
		s.isDev = true
	}
	if s.expDays <= 0 {
		s.expDays = DefaultTokenExpDays
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UsesDevSecret は開発用の署名鍵で動作しているかどうかを返す。
func (s *TokenService) UsesDevSecret() bool {
	return s.isDev
}

// Lifetime はトークンの有効期間を返す。
func (s *TokenService) Lifetime() time.Duration {
	return time.Duration(s.expDays) * 24 * time.Hour
}

// Issue はアカウントのセッショントークンを発行する。
// sub, iat, expに加えてemail, role, nameを埋め込む。
func (s *TokenService) Issue(accountID, email string, role model.Role, name string) (string, error) {
	if accountID == "" {
		return "", errors.New("account ID is required")
	}

	now := s.now()
	claims := Claims{
		Email: email,
		Role:  role,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.Lifetime())),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// IssueFor はアカウントのクレームでトークンを発行する。
func (s *TokenService) IssueFor(account *model.Account) (string, error) {
	return s.Issue(account.ID, account.Email, account.Role, account.Name)
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
// 署名不正、形式不正、想定外のアルゴリズム、期限切れ（exp以降）はすべてErrUnauthorizedとなる。
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, ErrUnauthorized
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}
	return claims, nil
}
