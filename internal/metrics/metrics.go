// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// サービス層およびハンドラー層から利用する。
type Recorder interface {
	RecordGenerationSuccess()
	RecordGenerationFailure(reason string)
	RecordGenerationLatency(duration time.Duration)
	RecordCreditsConsumed(count int)
	RecordCreditsGranted(count int)
	RecordWebhookEvent(eventName string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	generationSuccess prometheus.Counter
	generationFail    *prometheus.CounterVec
	generationLatency prometheus.Histogram
	creditsConsumed   prometheus.Counter
	creditsGranted    prometheus.Counter
	webhookEvents     *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		generationSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reportify_generation_success_total",
			Help: "レポート生成成功の合計数",
		}),
		generationFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reportify_generation_fail_total",
			Help: "レポート生成失敗の合計数（理由別）",
		}, []string{"reason"}),
		generationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reportify_generation_latency_seconds",
			Help:    "レポート生成のレイテンシ（秒）",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		creditsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reportify_credits_consumed_total",
			Help: "消費されたクレジットの合計数",
		}),
		creditsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reportify_credits_granted_total",
			Help: "付与されたクレジットの合計数",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reportify_webhook_events_total",
			Help: "受信したWebhookイベントの合計数（イベント名別）",
		}, []string{"event_name"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reportify_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.generationSuccess,
		c.generationFail,
		c.generationLatency,
		c.creditsConsumed,
		c.creditsGranted,
		c.webhookEvents,
		c.httpStatus,
	)

	return c
}

// RecordGenerationSuccess はレポート生成成功を記録する。
func (c *Collector) RecordGenerationSuccess() {
	c.generationSuccess.Inc()
}

// RecordGenerationFailure はレポート生成失敗を理由付きで記録する。
func (c *Collector) RecordGenerationFailure(reason string) {
	c.generationFail.WithLabelValues(reason).Inc()
}

// RecordGenerationLatency はレポート生成のレイテンシを記録する。
func (c *Collector) RecordGenerationLatency(duration time.Duration) {
	c.generationLatency.Observe(duration.Seconds())
}

// RecordCreditsConsumed は消費されたクレジット数を記録する。
func (c *Collector) RecordCreditsConsumed(count int) {
	c.creditsConsumed.Add(float64(count))
}

// RecordCreditsGranted は付与されたクレジット数を記録する。
func (c *Collector) RecordCreditsGranted(count int) {
	c.creditsGranted.Add(float64(count))
}

// RecordWebhookEvent は受信したWebhookイベントをイベント名別に記録する。
func (c *Collector) RecordWebhookEvent(eventName string) {
	c.webhookEvents.WithLabelValues(eventName).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// compile-time interface check
var _ Recorder = (*Collector)(nil)

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
