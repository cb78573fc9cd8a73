// Package auth はパスワード認証、セッショントークン、Google OAuthフローを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/homescan/internal/model"
	"github.com/hitoshi/homescan/internal/repository"
)

// EventRecorder は認証イベントの記録先。metrics.Collectorが実装する。
type EventRecorder interface {
	RecordAuthEvent(event, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAuthEvent(string, string) {}

// SignupInput はパスワード登録の入力。
type SignupInput struct {
	Email    string
	Password string
	Name     string
	Role     model.Role
}

// AuthResult はログイン成功時に返すトークンとアカウント。
type AuthResult struct {
	Token   string
	Account *model.Account
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	accounts repository.AccountRepository
	hasher   *PasswordHasher
	tokens   *TokenService
	oauth    OAuthProvider
	events   EventRecorder
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewService はServiceを生成する。eventsがnilの場合は記録しない。
func NewService(
	accounts repository.AccountRepository,
	hasher *PasswordHasher,
	tokens *TokenService,
	oauth OAuthProvider,
	events EventRecorder,
) *Service {
	if events == nil {
		events = noopRecorder{}
	}
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		oauth:    oauth,
		events:   events,
		now:      time.Now,
	}
}

// NormalizeEmail はメールアドレスを前後の空白を除いた小文字に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// defaultName は表示名が未指定の場合にメールアドレスのローカル部を返す。
func defaultName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

// Signup はパスワードアカウントを作成し、トークンを発行する。
// 登録済みのメールアドレスの場合はErrEmailTakenを返す。
// 事前チェックをすり抜けた同時登録もストアの一意制約によりErrEmailTakenとなる。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	email := NormalizeEmail(in.Email)
	role := in.Role
	if role == "" {
		role = model.RoleUser
	}

	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		s.events.RecordAuthEvent("signup", "store_error")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if existing != nil {
		s.events.RecordAuthEvent("signup", "conflict")
		return nil, ErrEmailTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &model.Account{
		Email:        email,
		Name:         defaultName(in.Name, email),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.events.RecordAuthEvent("signup", "conflict")
			return nil, ErrEmailTaken
		}
		s.events.RecordAuthEvent("signup", "store_error")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	token, err := s.tokens.IssueFor(account)
	if err != nil {
		return nil, err
	}

	slog.Info("account created",
		slog.String("account_id", account.ID),
		slog.String("role", string(account.Role)),
	)
	s.events.RecordAuthEvent("signup", "success")
	return &AuthResult{Token: token, Account: account}, nil
}

// Login はメールアドレスとパスワードを検証し、トークンを発行する。
// 未登録、パスワード未設定（OAuth専用）、不一致のいずれもErrInvalidCredentialsを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	account, err := s.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.IssueFor(account)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Account: account}, nil
}

// VerifyCredentials はメールアドレスとパスワードを検証し、アカウントを返す。
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*model.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		s.events.RecordAuthEvent("login", "store_error")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if account == nil || !account.HasPassword() {
		// 応答時間でアカウントの存在が判別されないよう、ダミーハッシュで比較する
		s.hasher.Verify(password, s.dummyPasswordHash())
		s.events.RecordAuthEvent("login", "failure")
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, account.PasswordHash) {
		s.events.RecordAuthEvent("login", "failure")
		return nil, ErrInvalidCredentials
	}

	s.events.RecordAuthEvent("login", "success")
	return account, nil
}

func (s *Service) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("homescan-dummy-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// LoginURL はOAuth認可URLを生成する。
func (s *Service) LoginURL(state string) (string, error) {
	return s.oauth.LoginURL(state)
}

// HandleCallback は認可コードを交換し、アカウントを解決または作成してトークンを発行する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*AuthResult, error) {
	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.events.RecordAuthEvent("oauth_callback", "provider_error")
		return nil, err
	}

	account, err := s.ResolveOAuthAccount(ctx, info)
	if err != nil {
		outcome := "provider_error"
		if errors.Is(err, ErrStoreUnavailable) {
			outcome = "store_error"
		}
		s.events.RecordAuthEvent("oauth_callback", outcome)
		return nil, err
	}

	token, err := s.tokens.IssueFor(account)
	if err != nil {
		return nil, err
	}

	s.events.RecordAuthEvent("oauth_callback", "success")
	return &AuthResult{Token: token, Account: account}, nil
}

// ResolveOAuthAccount はプロバイダーのメールアドレスで既存アカウントを検索し、
// 存在しない場合はパスワードなし・ロールuserのアカウントを作成する。
// 作成が同時リクエストとの競合で一意制約に違反した場合は、先に作成されたアカウントを返す。
func (s *Service) ResolveOAuthAccount(ctx context.Context, info *OAuthUserInfo) (*model.Account, error) {
	email := NormalizeEmail(info.Email)
	if email == "" {
		return nil, ErrProfileMissingEmail
	}

	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if existing != nil {
		slog.Info("existing account logged in via oauth",
			slog.String("account_id", existing.ID),
			slog.String("provider", info.Provider),
		)
		return existing, nil
	}

	now := s.now()
	account := &model.Account{
		Email:     email,
		Name:      defaultName(info.Name, email),
		Role:      model.RoleUser,
		Provider:  info.Provider,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if !errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		winner, findErr := s.accounts.FindByEmail(ctx, email)
		if findErr != nil || winner == nil {
			return nil, fmt.Errorf("%w: reload after conflict", ErrStoreUnavailable)
		}
		return winner, nil
	}

	slog.Info("account provisioned via oauth",
		slog.String("account_id", account.ID),
		slog.String("provider", info.Provider),
	)
	return account, nil
}
