// Package model はドメインモデルを定義する。
package model

import "time"

// Role はアカウントの権限レベルを表す。
type Role string

const (
	RoleUser  Role = "user"
	RoleITN   Role = "itn"
	RoleAdmin Role = "admin"
)

// ProviderGoogle はGoogle OAuthで作成されたアカウントのプロバイダタグ。
const ProviderGoogle = "google"

// ParseRole は文字列をRoleに変換する。空文字列はRoleUserとして扱う。
// 未知の値の場合はfalseを返す。
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case "":
		return RoleUser, true
	case RoleUser, RoleITN, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// Account はサービス利用者のアカウントを表す。
// Emailは小文字に正規化済みで、全アカウントで一意。
// PasswordHashはパスワード登録したアカウントのみ保持し、
// OAuthで作成されたアカウントでは空文字列となる。
type Account struct {
	ID           string
	Email        string
	Name         string
	Role         Role
	PasswordHash string
	Provider     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword はパスワードログイン可能なアカウントかどうかを返す。
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// PublicAccount はクライアントに返すアカウント情報。
type PublicAccount struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  Role   `json:"role"`
}

// Public はAccountを公開用の表現に変換する。
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:    a.ID,
		Email: a.Email,
		Name:  a.Name,
		Role:  a.Role,
	}
}
