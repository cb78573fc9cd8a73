package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/homescan/internal/auth"
	"github.com/hitoshi/homescan/internal/config"
	"github.com/hitoshi/homescan/internal/database"
	"github.com/hitoshi/homescan/internal/handler"
	"github.com/hitoshi/homescan/internal/logger"
	"github.com/hitoshi/homescan/internal/metrics"
	"github.com/hitoshi/homescan/internal/middleware"
	"github.com/hitoshi/homescan/internal/ollama"
	"github.com/hitoshi/homescan/internal/repository"
	"github.com/hitoshi/homescan/internal/retention"
	"github.com/hitoshi/homescan/internal/scan"
	"github.com/hitoshi/homescan/internal/security"
)

const (
	shutdownTimeout = 30 * time.Second
	// serverWriteTimeout はスキャン作成（画像ごとに解析モデルを呼ぶ）を打ち切らない長さにする。
	serverWriteTimeout = 10 * time.Minute
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再セットアップ
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		WriteUsage(w)
		return err
	}
	if cmd == CommandHelp {
		WriteUsage(w)
		return nil
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg, collector))
	defer rateLimiter.Stop()

	deps := buildRouterDeps(cfg, db, registry, collector, rateLimiter)
	router := handler.NewRouter(deps)

	// 4. 保持期間ジョブ（SCAN_RETENTION_DAYS > 0 の場合のみ）
	jobCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	startRetentionJob(jobCtx, cfg, db)

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      serverWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")
	stopJobs()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// startRetentionJob は古いスキャンを定期削除するゴルーチンを起動する。
func startRetentionJob(ctx context.Context, cfg *config.Config, db retention.Executor) bool {
	if cfg.ScanRetentionDays <= 0 {
		return false
	}
	job := retention.NewScanRetentionJob(db, slog.Default(), cfg.ScanRetentionDays)
	go job.Start(ctx, retention.DefaultInterval)
	slog.Info("scan retention job scheduled",
		slog.Int("retention_days", cfg.ScanRetentionDays),
	)
	return true
}

// buildRouterDeps は設定とDB接続から全依存関係をワイヤリングする。
func buildRouterDeps(
	cfg *config.Config,
	db *sql.DB,
	registry *prometheus.Registry,
	collector *metrics.Collector,
	rateLimiter *middleware.RateLimiter,
) *handler.RouterDeps {
	// リポジトリ
	accountRepo := repository.NewPostgresAccountRepo(db)
	scanRepo := repository.NewPostgresScanRepo(db)

	// 認証
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpDays)
	if tokens.UsesDevSecret() {
		slog.Warn("JWT_SECRET is not set; using the development signing secret")
	}
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
		HTTPTimeout:  cfg.OAuthHTTPTimeout,
	})
	authService := auth.NewService(
		accountRepo,
		auth.NewPasswordHasher(0),
		tokens,
		oauthProvider,
		collector,
	)

	// スキャン
	analyzer := ollama.NewClient(ollama.Config{
		Endpoint: cfg.OllamaURL,
		Model:    cfg.OllamaModel,
		Timeout:  cfg.OllamaTimeout,
	}, slog.Default())
	catalog := scan.DefaultCatalog()
	scanService := scan.NewService(scanRepo, analyzer, security.NewOutputSanitizer(), catalog, collector)

	return &handler.RouterDeps{
		Logger:            slog.Default(),
		Authenticator:     auth.NewGate(tokens),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		Gatherer:          registry,

		HealthChecker: db,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			FrontendURL:     cfg.FrontendURL,
			DefaultNextPath: cfg.DefaultNextPath,
			CookieSecure:    cfg.CookieSecure,
			CallbackEnabled: cfg.OAuthCallbackEnabled(),
		},

		ScanService: scanService,
		Catalog:     catalog,

		AdminConfig: adminConfigView(cfg, tokens),
	}
}

// rateLimiterConfig はスキャン作成のレート制限設定を構築する。
// 拒否したリクエストはメトリクスに記録する。
func rateLimiterConfig(cfg *config.Config, collector metrics.MetricsCollector) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig(cfg.RateLimitScan)
	rlCfg.OnLimited = collector.RecordRateLimited
	return rlCfg
}

// adminConfigView は管理APIで公開する設定値を構築する。シークレットは含めない。
func adminConfigView(cfg *config.Config, tokens *auth.TokenService) handler.AdminConfigView {
	return handler.AdminConfigView{
		OAuthEnabled:    cfg.OAuthCallbackEnabled(),
		FrontendURL:     cfg.FrontendURL,
		DefaultNextPath: cfg.DefaultNextPath,
		TokenExpDays:    int(tokens.Lifetime() / (24 * time.Hour)),
		DevSecret:       tokens.UsesDevSecret(),
		OllamaModel:     cfg.OllamaModel,
		RateLimitScan:   cfg.RateLimitScan,
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
