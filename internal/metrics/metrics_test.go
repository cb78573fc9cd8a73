package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily はレジストリから指定名のメトリクスファミリーを取得する。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelValue はメトリクスの指定ラベルの値を返す。
func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordAuthEvent_IncrementsCounterWithLabels は認証イベントがラベル別に集計されることを検証する。
func TestRecordAuthEvent_IncrementsCounterWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthEvent("login", "success")
	c.RecordAuthEvent("login", "success")
	c.RecordAuthEvent("login", "failure")
	c.RecordAuthEvent("signup", "conflict")

	mf := findMetricFamily(t, reg, "homescan_auth_events_total")
	if len(mf.GetMetric()) != 3 {
		t.Fatalf("expected 3 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		key := labelValue(m, "event") + "/" + labelValue(m, "outcome")
		val := m.GetCounter().GetValue()
		switch key {
		case "login/success":
			if val != 2 {
				t.Errorf("%s = %v, want 2", key, val)
			}
		case "login/failure", "signup/conflict":
			if val != 1 {
				t.Errorf("%s = %v, want 1", key, val)
			}
		default:
			t.Errorf("unexpected label combination: %s", key)
		}
	}
}

// TestRecordScan_IncrementsCounter はスキャンカウンタが増加することを検証する。
func TestRecordScan_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordScan("rics_analyze", "success")

	mf := findMetricFamily(t, reg, "homescan_scans_total")
	m := mf.GetMetric()[0]
	if labelValue(m, "question_id") != "rics_analyze" {
		t.Errorf("question_id = %q", labelValue(m, "question_id"))
	}
	if val := m.GetCounter().GetValue(); val != 1 {
		t.Errorf("scans_total = %v, want 1", val)
	}
}

// TestRecordAnalyzerLatency_ObservesHistogram は解析レイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordAnalyzerLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAnalyzerLatency(1500 * time.Millisecond)
	c.RecordAnalyzerLatency(3 * time.Second)

	mf := findMetricFamily(t, reg, "homescan_analyzer_latency_seconds")
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	// 合計は1.5 + 3.0 = 4.5秒
	if h.GetSampleSum() < 4.4 || h.GetSampleSum() > 4.6 {
		t.Errorf("sample_sum = %v, want ~4.5", h.GetSampleSum())
	}
}

// TestRecordImagesAnalyzed_IncrementsCounter は解析画像数カウンタが増加することを検証する。
func TestRecordImagesAnalyzed_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordImagesAnalyzed(3)
	c.RecordImagesAnalyzed(2)

	mf := findMetricFamily(t, reg, "homescan_images_analyzed_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 5 {
		t.Errorf("images_analyzed_total = %v, want 5", val)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(401)
	c.RecordRateLimited()

	mf := findMetricFamily(t, reg, "homescan_http_status_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		label := labelValue(m, "status_code")
		val := m.GetCounter().GetValue()
		switch label {
		case "200":
			if val != 2 {
				t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
			}
		case "401":
			if val != 1 {
				t.Errorf("http_status_total{status_code=401} = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected label value: %s", label)
		}
	}

	limited := findMetricFamily(t, reg, "homescan_rate_limited_total")
	if val := limited.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("rate_limited_total = %v, want 1", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthEvent("signup", "success")
	c.RecordScan("general", "success")
	c.RecordAnalyzerLatency(500 * time.Millisecond)
	c.RecordImagesAnalyzed(1)
	c.RecordHTTPStatus(200)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"homescan_auth_events_total",
		"homescan_scans_total",
		"homescan_analyzer_latency_seconds",
		"homescan_images_analyzed_total",
		"homescan_http_status_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordImagesAnalyzed(1)
	c2.RecordImagesAnalyzed(2)

	val1 := findMetricFamily(t, reg1, "homescan_images_analyzed_total").GetMetric()[0].GetCounter().GetValue()
	val2 := findMetricFamily(t, reg2, "homescan_images_analyzed_total").GetMetric()[0].GetCounter().GetValue()

	if val1 != 1 {
		t.Errorf("reg1 images_analyzed = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 images_analyzed = %v, want 2", val2)
	}
}
