// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// 同期エンジンやサービス層から利用する。
type Recorder interface {
	RecordFetchSuccess()
	RecordFetchFailure(reason string)
	RecordFetchLatency(duration time.Duration)
	RecordCacheFallback()
	RecordPageLoaded()
	RecordPostsUpserted(count int)
	RecordFavoriteToggle()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess    prometheus.Counter
	fetchFail       *prometheus.CounterVec
	fetchLatency    prometheus.Histogram
	cacheFallback   prometheus.Counter
	pagesLoaded     prometheus.Counter
	postsUpserted   prometheus.Counter
	favoriteToggles prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postfeed_fetch_success_total",
			Help: "投稿フェッチ成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postfeed_fetch_fail_total",
			Help: "投稿フェッチ失敗の合計数（理由別）",
		}, []string{"reason"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "postfeed_fetch_latency_seconds",
			Help:    "投稿フェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cacheFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postfeed_cache_fallback_total",
			Help: "リモート失敗によるキャッシュフォールバックの合計数",
		}),
		pagesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postfeed_pages_loaded_total",
			Help: "読み込まれたページの合計数",
		}),
		postsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postfeed_posts_upserted_total",
			Help: "アップサートされた投稿の合計数",
		}),
		favoriteToggles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postfeed_favorite_toggles_total",
			Help: "お気に入りトグル操作の合計数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.fetchLatency,
		c.cacheFallback,
		c.pagesLoaded,
		c.postsUpserted,
		c.favoriteToggles,
	)

	return c
}

// RecordFetchSuccess はフェッチ成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はフェッチ失敗を理由付きで記録する。
func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordCacheFallback はキャッシュフォールバックの発生を記録する。
func (c *Collector) RecordCacheFallback() {
	c.cacheFallback.Inc()
}

// RecordPageLoaded はページ読み込みの完了を記録する。
func (c *Collector) RecordPageLoaded() {
	c.pagesLoaded.Inc()
}

// RecordPostsUpserted はアップサートされた投稿数を記録する。
func (c *Collector) RecordPostsUpserted(count int) {
	c.postsUpserted.Add(float64(count))
}

// RecordFavoriteToggle はお気に入りトグル操作を記録する。
func (c *Collector) RecordFavoriteToggle() {
	c.favoriteToggles.Inc()
}

// NopRecorder は何も記録しないRecorder。テストとメトリクス無効時に使用する。
type NopRecorder struct{}

func (NopRecorder) RecordFetchSuccess() {}

func (NopRecorder) RecordFetchFailure(reason string) {}

func (NopRecorder) RecordFetchLatency(duration time.Duration) {}

func (NopRecorder) RecordCacheFallback() {}

func (NopRecorder) RecordPageLoaded() {}

func (NopRecorder) RecordPostsUpserted(count int) {}

func (NopRecorder) RecordFavoriteToggle() {}

var _ Recorder = (*Collector)(nil)
var _ Recorder = NopRecorder{}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
