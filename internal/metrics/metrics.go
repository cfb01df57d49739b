package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics 活动缓存相关指标
type CacheMetrics struct {
	refreshes       *prometheus.CounterVec
	refreshSkipped  prometheus.Counter
	refreshDuration prometheus.Histogram
	campaigns       prometheus.Gauge
	fetchFailures   *prometheus.CounterVec
	rpcRetries      prometheus.Counter
}

var (
	cacheMetricsOnce sync.Once
	cacheRegistry    *CacheMetrics
)

// Cache 返回进程级指标，首次调用时注册到默认 registry
func Cache() *CacheMetrics {
	cacheMetricsOnce.Do(func() {
		cacheRegistry = &CacheMetrics{
			refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crowdmint",
				Subsystem: "cache",
				Name:      "refresh_total",
				Help:      "Completed campaign cache refresh passes by result.",
			}, []string{"result"}),
			refreshSkipped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "crowdmint",
				Subsystem: "cache",
				Name:      "refresh_skipped_total",
				Help:      "Refresh triggers ignored because another refresh was in flight.",
			}),
			refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "crowdmint",
				Subsystem: "cache",
				Name:      "refresh_duration_seconds",
				Help:      "Wall time of one full refresh pass.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			}),
			campaigns: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "crowdmint",
				Subsystem: "cache",
				Name:      "campaigns",
				Help:      "Number of campaigns in the current cache snapshot.",
			}),
			fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crowdmint",
				Name:      "campaign_fetch_failures_total",
				Help:      "Campaigns dropped from a refresh pass by failing stage.",
			}, []string{"stage"}),
			rpcRetries: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "crowdmint",
				Name:      "rpc_retries_total",
				Help:      "RPC calls retried after a rate-limit response.",
			}),
		}
		prometheus.MustRegister(
			cacheRegistry.refreshes,
			cacheRegistry.refreshSkipped,
			cacheRegistry.refreshDuration,
			cacheRegistry.campaigns,
			cacheRegistry.fetchFailures,
			cacheRegistry.rpcRetries,
		)
	})
	return cacheRegistry
}

// ObserveRefresh 记录一次刷新
func (m *CacheMetrics) ObserveRefresh(result string, elapsed time.Duration, campaigns int) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
	m.refreshDuration.Observe(elapsed.Seconds())
	m.campaigns.Set(float64(campaigns))
}

// RefreshSkipped 记录被跳过的刷新
func (m *CacheMetrics) RefreshSkipped() {
	if m == nil {
		return
	}
	m.refreshSkipped.Inc()
}

// FetchFailed 记录单个活动抓取失败
func (m *CacheMetrics) FetchFailed(stage string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(stage).Inc()
}

// RPCRetried 记录一次限流重试
func (m *CacheMetrics) RPCRetried() {
	if m == nil {
		return
	}
	m.rpcRetries.Inc()
}
