package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	defaultGoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	defaultOAuthHTTPTimeout  = 20 * time.Second
	// maxUserInfoBytes はユーザー情報レスポンスの読み取り上限。
	maxUserInfoBytes = 1 << 20
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// LoginURL はstateを埋め込んだ認可URLを生成する。
	// クライアントIDまたはリダイレクトURIが未設定の場合はErrNotConfiguredを返す。
	LoginURL(state string) (string, error)
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// HTTPTimeout はトークン交換・ユーザー情報取得それぞれの外部呼び出しのタイムアウト。
	HTTPTimeout time.Duration

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// GoogleOAuthProvider はGoogle OAuth 2.0の認可コードフローを提供する。
type GoogleOAuthProvider struct {
	config      GoogleOAuthConfig
	oauthConfig *oauth2.Config
	httpClient  *http.Client
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}
	if config.HTTPTimeout <= 0 {
		config.HTTPTimeout = defaultOAuthHTTPTimeout
	}

	endpoint := google.Endpoint
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}
	// クライアント資格情報はPOSTボディで送信する
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &GoogleOAuthProvider{
		config: config,
		oauthConfig: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		httpClient: &http.Client{Timeout: config.HTTPTimeout},
	}
}

// canStart は認可フロー開始に必要な設定が揃っているかを返す。
func (p *GoogleOAuthProvider) canStart() bool {
	return p.config.ClientID != "" && p.config.RedirectURL != ""
}

// canExchange はコード交換に必要な設定が揃っているかを返す。
func (p *GoogleOAuthProvider) canExchange() bool {
	return p.canStart() && p.config.ClientSecret != ""
}

// LoginURL はGoogle OAuthの認可URLを生成する。
// オフラインアクセスと同意画面の表示を要求する。
func (p *GoogleOAuthProvider) LoginURL(state string) (string, error) {
	if !p.canStart() {
		return "", ErrNotConfigured
	}
	return p.oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// googleUserInfo はGoogleのユーザー情報エンドポイントのレスポンス。
type googleUserInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
// 各外部呼び出しはHTTPTimeoutで打ち切られ、タイムアウトは交換失敗として扱う。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if !p.canExchange() {
		return nil, ErrNotConfigured
	}

	// 1. 認可コードをアクセストークンに交換
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrExchangeFailed)
	}

	// 2. アクセストークンでユーザー情報を取得
	info, err := p.fetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, ErrProfileMissingEmail
	}

	return &OAuthUserInfo{
		ProviderUserID: info.Sub,
		Email:          info.Email,
		Name:           info.Name,
		Provider:       "google",
	}, nil
}

// fetchUserInfo はアクセストークンでGoogleのユーザー情報を取得する。
func (p *GoogleOAuthProvider) fetchUserInfo(ctx context.Context, accessToken string) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrProfileFetchFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrProfileFetchFailed, resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrProfileFetchFailed, err)
	}
	return &info, nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
