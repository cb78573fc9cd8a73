package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/homescan/internal/model"
	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

const accountColumns = `id, email, name, role, password_hash, provider, created_at, updated_at`

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		id,
	)
	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}
	return account, nil
}

// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`,
		email,
	)
	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return account, nil
}

// Create はアカウントを作成する。
// 作成は単一のINSERTで行うため、失敗時に中途半端なレコードは残らない。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID,
		account.Email,
		account.Name,
		string(account.Role),
		nullString(account.PasswordHash),
		nullString(account.Provider),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// scanAccount は1行をAccountに読み込む。行が存在しない場合はnilを返す。
func scanAccount(row *sql.Row) (*model.Account, error) {
	var (
		a            model.Account
		role         string
		passwordHash sql.NullString
		provider     sql.NullString
	)
	err := row.Scan(&a.ID, &a.Email, &a.Name, &role, &passwordHash, &provider, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Role = model.Role(role)
	a.PasswordHash = passwordHash.String
	a.Provider = provider.String
	return &a, nil
}

// isUniqueViolation はエラーが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
