package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/homescan/internal/model"
	"github.com/hitoshi/homescan/internal/repository"
)

// サービスが返すエラー。ハンドラー層はerrors.Isで判定する。
var (
	// ErrNoImages は画像が1枚も渡されなかったことを表す（400）。
	ErrNoImages = errors.New("no images to analyze")
	// ErrAnalysisFailed は解析モデルの呼び出し失敗を表す（502）。
	ErrAnalysisFailed = errors.New("analysis failed")
	// ErrNotFound はスキャンが存在しない、または所有者が異なることを表す（404）。
	ErrNotFound = errors.New("scan not found")
	// ErrStoreUnavailable はスキャンストアに到達できないことを表す（503）。
	ErrStoreUnavailable = errors.New("scan store unavailable")
)

// Analyzer は画像とプロンプトからテキストを生成する解析モデル。
// ollama.Clientが実装する。
type Analyzer interface {
	Generate(ctx context.Context, prompt string, images ...[]byte) (string, error)
	Model() string
}

// Sanitizer はモデル出力からマークアップを除去する。
// security.OutputSanitizerが実装する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Recorder はスキャンのメトリクス記録先。metrics.Collectorが実装する。
type Recorder interface {
	RecordScan(questionID, outcome string)
	RecordAnalyzerLatency(duration time.Duration)
	RecordImagesAnalyzed(count int)
}

type noopRecorder struct{}

func (noopRecorder) RecordScan(string, string)            {}
func (noopRecorder) RecordAnalyzerLatency(time.Duration) {}
func (noopRecorder) RecordImagesAnalyzed(int)            {}

// Service はスキャンの実行・取得に関するビジネスロジックを提供する。
type Service struct {
	scans     repository.ScanRepository
	analyzer  Analyzer
	sanitizer Sanitizer
	catalog   *Catalog
	recorder  Recorder
	now       func() time.Time
}

// NewService はServiceを生成する。recorderがnilの場合は記録しない。
func NewService(
	scans repository.ScanRepository,
	analyzer Analyzer,
	sanitizer Sanitizer,
	catalog *Catalog,
	recorder Recorder,
) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{
		scans:     scans,
		analyzer:  analyzer,
		sanitizer: sanitizer,
		catalog:   catalog,
		recorder:  recorder,
		now:       time.Now,
	}
}

// Catalog は質問一覧を返す。
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Create は画像を1枚ずつ解析し、結果をアカウントのスキャンとして保存する。
// 不明な質問IDはデフォルトの質問として扱う。
// いずれかの画像の解析に失敗した場合は保存せずErrAnalysisFailedを返す。
func (s *Service) Create(ctx context.Context, accountID, questionID string, images [][]byte) (*model.Scan, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	question := s.catalog.Resolve(questionID)

	raws := make([]string, 0, len(images))
	for i, img := range images {
		start := time.Now()
		raw, err := s.analyzer.Generate(ctx, question.Prompt, img)
		s.recorder.RecordAnalyzerLatency(time.Since(start))
		if err != nil {
			s.recorder.RecordScan(question.ID, "analysis_failed")
			slog.Error("image analysis failed",
				slog.String("account_id", accountID),
				slog.String("question_id", question.ID),
				slog.Int("image_index", i),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
		}
		raws = append(raws, s.sanitizer.Sanitize(raw))
	}
	s.recorder.RecordImagesAnalyzed(len(images))

	scan := &model.Scan{
		AccountID:  accountID,
		QuestionID: question.ID,
		Model:      s.analyzer.Model(),
		Raws:       raws,
		CreatedAt:  s.now(),
	}
	if err := s.scans.Create(ctx, scan); err != nil {
		s.recorder.RecordScan(question.ID, "store_error")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.recorder.RecordScan(question.ID, "success")
	slog.Info("scan completed",
		slog.String("account_id", accountID),
		slog.String("scan_id", scan.ID),
		slog.String("question_id", question.ID),
		slog.Int("images_count", len(images)),
	)
	return scan, nil
}

// Get はアカウントが所有するスキャンを取得する。
// 存在しない場合と他アカウントのスキャンの場合はどちらもErrNotFoundを返す。
func (s *Service) Get(ctx context.Context, accountID, scanID string) (*model.Scan, error) {
	scan, err := s.scans.FindByIDAndAccount(ctx, scanID, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if scan == nil {
		return nil, ErrNotFound
	}
	return scan, nil
}

// List はアカウントのスキャン一覧を新しい順に返す。
func (s *Service) List(ctx context.Context, accountID string, limit int) ([]*model.Scan, error) {
	scans, err := s.scans.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return scans, nil
}
