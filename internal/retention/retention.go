// Package retention は保持期間を超過したスキャン結果の定期削除ジョブを提供する。
package retention

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はジョブの実行間隔。
const DefaultInterval = 24 * time.Hour

// Executor はSQLのExecContextを抽象化するインターフェース。*sql.DBや*sql.Txが実装する。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ScanRetentionJob はcreated_atが保持日数より古いスキャンを削除する。
// 削除対象がない場合もエラーにしない。
type ScanRetentionJob struct {
	db            Executor
	logger        *slog.Logger
	retentionDays int
}

// NewScanRetentionJob はScanRetentionJobを生成する。retentionDaysは1以上を指定する。
func NewScanRetentionJob(db Executor, logger *slog.Logger, retentionDays int) *ScanRetentionJob {
	return &ScanRetentionJob{db: db, logger: logger, retentionDays: retentionDays}
}

// Run は保持期間を超過したスキャンを1回削除する。
func (j *ScanRetentionJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	result, err := j.db.ExecContext(ctx,
		`DELETE FROM scans WHERE created_at < now() - make_interval(days => $1)`,
		j.retentionDays,
	)
	if err != nil {
		j.logger.Error("scan retention job failed",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.retentionDays),
		)
		return 0, fmt.Errorf("delete expired scans: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	j.logger.Info("scan retention job completed",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.retentionDays),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return deleted, nil
}

// Start は起動直後に1回実行し、以降intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。失敗はログに記録して次回に持ち越す。
func (j *ScanRetentionJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	_, _ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = j.Run(ctx)
		}
	}
}
