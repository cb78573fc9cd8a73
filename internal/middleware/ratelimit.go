package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/homescan/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	ScanRate        rate.Limit    // スキャン作成のレート（req/sec）。10/60
	ScanBurst       int           // スキャン作成のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
	// OnLimited はリクエストを拒否したときに呼ばれる。nilの場合は呼ばない。
	OnLimited func()
}

// DefaultRateLimiterConfig はアカウントあたり毎分scansPerMinute回のレート制限設定を返す。
// scansPerMinuteが0以下の場合は10を使用する。
func DefaultRateLimiterConfig(scansPerMinute int) RateLimiterConfig {
	if scansPerMinute <= 0 {
		scansPerMinute = 10
	}
	return RateLimiterConfig{
		ScanRate:        rate.Limit(float64(scansPerMinute) / 60.0),
		ScanBurst:       scansPerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// accountLimiter はアカウントごとのレートリミッターとアクセス時刻を保持する。
type accountLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はアカウントごとのスキャン作成レート制限を管理する。
// 解析モデルの呼び出しは重いため、スキャン作成エンドポイントのみに適用する。
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.Mutex
	limiters map[string]*accountLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		limiters: make(map[string]*accountLimiter),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// ScanMiddleware はスキャン作成のレート制限ミドルウェアを返す。
// リクエストコンテキストにクレームが含まれている必要がある（AuthMiddlewareの後に配置）。
func (rl *RateLimiter) ScanMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, err := AccountIDFromContext(r.Context())
			if err != nil {
				WriteMissingBearer(w)
				return
			}

			if !rl.Allow(accountID) {
				writeRateLimitResponse(w, rl.config.ScanRate)
				if rl.config.OnLimited != nil {
					rl.config.OnLimited()
				}
				slog.Warn("rate limit exceeded",
					slog.String("account_id", accountID),
					slog.String("limit_type", "scan"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Allow はアカウントのリクエストを許可するかどうかを返す。
func (rl *RateLimiter) Allow(accountID string) bool {
	return rl.getOrCreateLimiter(accountID).Allow()
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) LimiterCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// getOrCreateLimiter はアカウントのリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateLimiter(accountID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if al, exists := rl.limiters[accountID]; exists {
		al.lastAccess = time.Now()
		return al.limiter
	}

	limiter := rate.NewLimiter(rl.config.ScanRate, rl.config.ScanBurst)
	rl.limiters[accountID] = &accountLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for accountID, al := range rl.limiters {
		if now.Sub(al.lastAccess) > ttl {
			delete(rl.limiters, accountID)
		}
	}
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
