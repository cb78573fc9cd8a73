// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービス、スキャンサービス、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordAuthEvent(event, outcome string)
	RecordScan(questionID, outcome string)
	RecordAnalyzerLatency(duration time.Duration)
	RecordImagesAnalyzed(count int)
	RecordRateLimited()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authEvents      *prometheus.CounterVec
	scans           *prometheus.CounterVec
	analyzerLatency prometheus.Histogram
	imagesAnalyzed  prometheus.Counter
	rateLimited     prometheus.Counter
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homescan_auth_events_total",
			Help: "認証イベント（signup, login, oauth_callback）の結果別の合計数",
		}, []string{"event", "outcome"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homescan_scans_total",
			Help: "質問ID・結果別のスキャン数",
		}, []string{"question_id", "outcome"}),
		analyzerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "homescan_analyzer_latency_seconds",
			Help:    "画像1枚あたりの解析モデル呼び出しのレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
		}),
		imagesAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homescan_images_analyzed_total",
			Help: "解析した画像の合計数",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homescan_rate_limited_total",
			Help: "レート制限で拒否されたリクエストの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homescan_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.authEvents,
		c.scans,
		c.analyzerLatency,
		c.imagesAnalyzed,
		c.rateLimited,
		c.httpStatus,
	)

	return c
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(event, outcome string) {
	c.authEvents.WithLabelValues(event, outcome).Inc()
}

// RecordScan はスキャン結果を記録する。
func (c *Collector) RecordScan(questionID, outcome string) {
	c.scans.WithLabelValues(questionID, outcome).Inc()
}

// RecordAnalyzerLatency は解析モデル呼び出しのレイテンシを記録する。
func (c *Collector) RecordAnalyzerLatency(duration time.Duration) {
	c.analyzerLatency.Observe(duration.Seconds())
}

// RecordImagesAnalyzed は解析した画像数を記録する。
func (c *Collector) RecordImagesAnalyzed(count int) {
	c.imagesAnalyzed.Add(float64(count))
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// statusRecorder はレスポンスのステータスコードを記録するResponseWriterラッパー。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// NewHTTPStatusMiddleware はレスポンスのステータスコードを記録するミドルウェアを返す。
func NewHTTPStatusMiddleware(collector MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)
			collector.RecordHTTPStatus(rec.statusCode)
		})
	}
}
