// ============================================================================
// Reporter Metrics - Prometheus 監控指標
// ============================================================================
//
// Package: internal/metrics
// 文件: metrics.go
// 功能: 收集和暴露 reporter 運行指標
//
// 指標分類:
//
//   1. 計數器 (Counter)：
//      - reporter_jobs_received_total{type,outcome}: 收到的任務
//      - reporter_failures_tracked_total{category}: 進入失敗清單的任務
//      - reporter_publishes_total{result}: 狀態發佈（ok / failed / suppressed）
//      - reporter_aggregation_conflicts_total: Misc 樹衝突
//      - reporter_queue_wait_errors_total: 佇列等待錯誤
//      - reporter_renders_total{result}: 應用程式輸出檔產生結果
//      - reporter_uploads_total{result}: 產物上傳結果
//
//   2. 分佈 (Histogram)：
//      - reporter_queue_batch_size: 每次等待取得的元素數
//
//   3. 狀態 (Gauge)：
//      - reporter_last_publish_timestamp_seconds: 最後一次成功發佈時間
//
// Prometheus 查詢示例:
//
//   # 發佈失敗率
//   rate(reporter_publishes_total{result="failed"}[5m])
//
//   # 每分鐘收到的失敗測試
//   rate(reporter_jobs_received_total{type="tests",outcome="failed"}[1m])
//
// 所有方法在 nil *Collector 上都是 no-op，元件可以不帶指標執行。
//
// ============================================================================

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 發佈結果標籤
const (
	PublishOK         = "ok"
	PublishFailed     = "failed"
	PublishSuppressed = "suppressed"
)

// 通用結果標籤
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collector Prometheus 指標收集器
type Collector struct {
	jobsReceived    *prometheus.CounterVec
	failuresTracked *prometheus.CounterVec
	publishes       *prometheus.CounterVec
	conflicts       prometheus.Counter
	queueErrors     prometheus.Counter
	renders         *prometheus.CounterVec
	uploads         *prometheus.CounterVec

	batchSize   prometheus.Histogram
	lastPublish prometheus.Gauge
}

// NewCollector 創建並註冊指標收集器；reg 為 nil 時使用 prometheus.DefaultRegisterer
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		jobsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_jobs_received_total",
			Help: "Total number of finished jobs received, by type and outcome",
		}, []string{"type", "outcome"}),
		failuresTracked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_failures_tracked_total",
			Help: "Total number of failures recorded in the failure lists",
		}, []string{"category"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_publishes_total",
			Help: "Status publishes by result",
		}, []string{"result"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reporter_aggregation_conflicts_total",
			Help: "Jobs skipped because another job claimed the same path",
		}),
		queueErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reporter_queue_wait_errors_total",
			Help: "Errors returned by the queue wait primitive",
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_renders_total",
			Help: "Per-application output renders by result",
		}, []string{"result"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_uploads_total",
			Help: "Artifact uploads by result",
		}, []string{"result"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reporter_queue_batch_size",
			Help:    "Number of elements returned by one queue wait",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		lastPublish: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reporter_last_publish_timestamp_seconds",
			Help: "Unix time of the last successful status publish",
		}),
	}

	reg.MustRegister(
		c.jobsReceived,
		c.failuresTracked,
		c.publishes,
		c.conflicts,
		c.queueErrors,
		c.renders,
		c.uploads,
		c.batchSize,
		c.lastPublish,
	)
	return c
}

// RecordJob 記錄收到的任務；jobType 只應為 builds、tests 或 other
func (c *Collector) RecordJob(jobType string, passed bool) {
	if c == nil {
		return
	}
	outcome := "passed"
	if !passed {
		outcome = "failed"
	}
	c.jobsReceived.WithLabelValues(jobType, outcome).Inc()
}

// RecordFailure 記錄進入失敗清單的任務
func (c *Collector) RecordFailure(category string) {
	if c == nil {
		return
	}
	c.failuresTracked.WithLabelValues(category).Inc()
}

// RecordPublish 記錄一次發佈
func (c *Collector) RecordPublish(result string) {
	if c == nil {
		return
	}
	c.publishes.WithLabelValues(result).Inc()
	if result == PublishOK {
		c.lastPublish.Set(float64(time.Now().UnixNano()) / 1e9)
	}
}

// RecordConflict 記錄 Misc 樹衝突
func (c *Collector) RecordConflict() {
	if c == nil {
		return
	}
	c.conflicts.Inc()
}

// RecordQueueError 記錄佇列等待錯誤
func (c *Collector) RecordQueueError() {
	if c == nil {
		return
	}
	c.queueErrors.Inc()
}

// ObserveBatch 記錄一次等待取得的元素數
func (c *Collector) ObserveBatch(n int) {
	if c == nil {
		return
	}
	c.batchSize.Observe(float64(n))
}

// RecordRender 記錄一個應用程式輸出檔的產生結果
func (c *Collector) RecordRender(err error) {
	if c == nil {
		return
	}
	c.renders.WithLabelValues(resultLabel(err)).Inc()
}

// RecordUpload 記錄一個檔案的上傳結果
func (c *Collector) RecordUpload(err error) {
	if c == nil {
		return
	}
	c.uploads.WithLabelValues(resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// Handler 回傳 /metrics 的 HTTP handler；g 為 nil 時使用 DefaultGatherer
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
