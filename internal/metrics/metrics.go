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
// ハンドラー、ガード、カタログ、ワーカーから利用する。
type MetricsCollector interface {
	RecordAuthAttempt(operation, result string)
	RecordGuardDecision(decision string)
	RecordCatalogFailure(source string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordSessionsDeleted(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	reg             prometheus.Registerer
	authAttempts    *prometheus.CounterVec
	guardDecisions  *prometheus.CounterVec
	catalogFailures *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	sessionsDeleted prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reg: reg,
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamehub_auth_attempts_total",
			Help: "ログイン・登録の試行数（結果別）",
		}, []string{"operation", "result"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamehub_guard_decisions_total",
			Help: "保護ページへのアクセス判定の数",
		}, []string{"decision"}),
		catalogFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamehub_catalog_failures_total",
			Help: "カタログ取得失敗の合計数",
		}, []string{"source"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamehub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gamehub_request_latency_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamehub_sessions_deleted_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.guardDecisions,
		c.catalogFailures,
		c.httpStatus,
		c.requestLatency,
		c.sessionsDeleted,
	)

	return c
}

// RecordAuthAttempt はログイン・登録の結果を記録する。resultは "ok" またはエラーコード。
func (c *Collector) RecordAuthAttempt(operation, result string) {
	c.authAttempts.WithLabelValues(operation, result).Inc()
}

// RecordGuardDecision はルートガードの判定を記録する。
func (c *Collector) RecordGuardDecision(decision string) {
	c.guardDecisions.WithLabelValues(decision).Inc()
}

// RecordCatalogFailure はカタログ取得失敗を記録する。
func (c *Collector) RecordCatalogFailure(source string) {
	c.catalogFailures.WithLabelValues(source).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordSessionsDeleted は削除されたセッション数を記録する。
func (c *Collector) RecordSessionsDeleted(count int64) {
	c.sessionsDeleted.Add(float64(count))
}

// ObserveActiveSessions はメモリ上のセッションコンテキスト数をスクレイプ時に読むゲージを登録する。
func (c *Collector) ObserveActiveSessions(count func() int) {
	c.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gamehub_active_sessions",
		Help: "メモリ上で保持しているセッションコンテキストの数",
	}, func() float64 {
		return float64(count())
	}))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
