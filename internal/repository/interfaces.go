// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/homescan/internal/model"
)

// ErrDuplicateEmail はaccounts.emailの一意制約違反を表す。
// アプリケーション側の事前チェックをすり抜けた同時登録はこのエラーで検出される。
var ErrDuplicateEmail = errors.New("repository: email already exists")

// AccountRepository はアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail は正規化済みメールアドレスでアカウントを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Create はアカウントを単一のINSERTで作成する。
	// IDが空の場合はストア側で採番し、accountに書き戻す。
	// 一意制約違反の場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, account *model.Account) error
}

// ScanRepository はスキャン結果の永続化インターフェース。
type ScanRepository interface {
	// Create はスキャン結果を保存する。IDが空の場合は採番する。
	Create(ctx context.Context, scan *model.Scan) error

	// FindByIDAndAccount は所有者を限定してスキャンを取得する。
	// 見つからない場合、または他アカウントのスキャンの場合はnilを返す。
	FindByIDAndAccount(ctx context.Context, id, accountID string) (*model.Scan, error)

	// ListByAccount はアカウントのスキャン一覧をcreated_at降順で返す。
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*model.Scan, error)
}
