package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/homescan/internal/metrics"
	"github.com/hitoshi/homescan/internal/middleware"
	"github.com/hitoshi/homescan/internal/model"
	"github.com/hitoshi/homescan/internal/scan"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	Gatherer          prometheus.Gatherer

	// ヘルスチェック
	HealthChecker HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// スキャン
	ScanService    ScanServiceInterface
	Catalog        *scan.Catalog
	MaxUploadBytes int64

	// 管理
	AdminConfig AdminConfigView
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → HTTPStatus(metrics) → SecurityHeaders → CORS
//	  └ 認証が必要なルート: Auth → [RequireRole(admin)] → [ScanRateLimit]
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(metrics.NewHTTPStatusMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	scanHandler := NewScanHandler(deps.ScanService, deps.MaxUploadBytes)
	questionHandler := NewQuestionHandler(deps.Catalog)
	adminHandler := NewAdminHandler(deps.AdminConfig)
	authMiddleware := middleware.NewAuthMiddleware(deps.Authenticator)

	// --- 認証不要のルート ---

	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker).Health)
	}
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.SetupMetricsRoute(deps.Gatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Get("/google/start", authHandler.GoogleStart)
		r.Get("/google/callback", authHandler.GoogleCallback)

		r.With(authMiddleware).Get("/me", authHandler.Me)
	})

	r.Get("/api/questions", questionHandler.ListQuestions)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Route("/api/scans", func(r chi.Router) {
			// POST /api/scans - スキャン実行（アカウント単位のレート制限を適用）
			if deps.RateLimiter != nil {
				r.With(deps.RateLimiter.ScanMiddleware()).Post("/", scanHandler.CreateScan)
			} else {
				r.Post("/", scanHandler.CreateScan)
			}
			r.Get("/", scanHandler.ListScans)
			r.Get("/{id}", scanHandler.GetScan)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))
			r.Get("/config", adminHandler.Config)
		})
	})

	return r
}
