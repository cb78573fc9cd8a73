package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/homescan/internal/model"
)

// defaultScanListLimit はListByAccountのlimit未指定時の件数。
const defaultScanListLimit = 50

// PostgresScanRepo はPostgreSQLを使用したスキャンリポジトリ。
type PostgresScanRepo struct {
	db *sql.DB
}

// NewPostgresScanRepo はPostgresScanRepoを生成する。
func NewPostgresScanRepo(db *sql.DB) *PostgresScanRepo {
	return &PostgresScanRepo{db: db}
}

// Create はスキャン結果を保存する。rawsはJSONB列に格納する。
func (r *PostgresScanRepo) Create(ctx context.Context, scan *model.Scan) error {
	if scan.ID == "" {
		scan.ID = uuid.New().String()
	}

	raws, err := json.Marshal(scan.Raws)
	if err != nil {
		return fmt.Errorf("failed to encode raws: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO scans (id, account_id, question_id, model, raws, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		scan.ID, scan.AccountID, scan.QuestionID, scan.Model, raws, scan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	return nil
}

// FindByIDAndAccount は所有者を限定してスキャンを取得する。
// idがUUIDとして解釈できない場合は問い合わせずにnilを返す。
func (r *PostgresScanRepo) FindByIDAndAccount(ctx context.Context, id, accountID string) (*model.Scan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	var (
		s    model.Scan
		raws []byte
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, account_id, question_id, model, raws, created_at
		 FROM scans
		 WHERE id = $1 AND account_id = $2`,
		id, accountID,
	).Scan(&s.ID, &s.AccountID, &s.QuestionID, &s.Model, &raws, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find scan: %w", err)
	}
	if err := json.Unmarshal(raws, &s.Raws); err != nil {
		return nil, fmt.Errorf("failed to decode raws: %w", err)
	}
	return &s, nil
}

// ListByAccount はアカウントのスキャン一覧をcreated_at降順で返す。
func (r *PostgresScanRepo) ListByAccount(ctx context.Context, accountID string, limit int) ([]*model.Scan, error) {
	if limit <= 0 {
		limit = defaultScanListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, question_id, model, raws, created_at
		 FROM scans
		 WHERE account_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	scans := []*model.Scan{}
	for rows.Next() {
		var (
			s    model.Scan
			raws []byte
		)
		if err := rows.Scan(&s.ID, &s.AccountID, &s.QuestionID, &s.Model, &raws, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(raws, &s.Raws); err != nil {
			return nil, fmt.Errorf("failed to decode raws: %w", err)
		}
		scans = append(scans, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scans: %w", err)
	}
	return scans, nil
}

// compile-time interface check
var _ ScanRepository = (*PostgresScanRepo)(nil)
