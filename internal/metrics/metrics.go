// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// provision.MetricsRecorderとmiddleware.StatusReporterを満たす。
type Collector struct {
	provisionSuccess prometheus.Counter
	provisionFail    *prometheus.CounterVec
	provisionLatency prometheus.Histogram
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		provisionSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "elderwatch_provision_success_total",
			Help: "患者アカウント作成成功の合計数",
		}),
		provisionFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elderwatch_provision_fail_total",
			Help: "患者アカウント作成失敗のエラーコード別合計数",
		}, []string{"reason"}),
		provisionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "elderwatch_provision_latency_seconds",
			Help:    "患者アカウント作成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elderwatch_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.provisionSuccess,
		c.provisionFail,
		c.provisionLatency,
		c.httpStatus,
	)

	return c
}

// RecordProvisionSuccess は患者アカウント作成成功を記録する。
func (c *Collector) RecordProvisionSuccess() {
	c.provisionSuccess.Inc()
}

// RecordProvisionFailure は患者アカウント作成失敗をエラーコード別に記録する。
func (c *Collector) RecordProvisionFailure(code string) {
	c.provisionFail.WithLabelValues(code).Inc()
}

// RecordProvisionLatency は患者アカウント作成のレイテンシを記録する。
func (c *Collector) RecordProvisionLatency(d time.Duration) {
	c.provisionLatency.Observe(d.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
