package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"sql"},
	)

	// 变更计数
	MutationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_mutations_total",
			Help: "Total number of gateway mutations",
		},
		[]string{"operation", "status"}, // status: ok, or the error code
	)

	// 广播事件计数
	EventsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_events_broadcast_total",
			Help: "Change events handed to the local hub",
		},
		[]string{"type"},
	)

	// 丢弃的投递（队列已满）
	DeliveriesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_deliveries_dropped_total",
			Help: "Events dropped for a peer whose outbound queue was full",
		},
	)

	ConnectedPeers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_connected_peers",
			Help: "Currently connected push channel peers",
		},
	)

	// 跨实例转发失败
	RelayFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_relay_failures_total",
			Help: "Relay publish or decode failures",
		},
		[]string{"backend", "stage"}, // stage: publish, decode
	)
)

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery 记录慢查询
func IncrementSlowQuery(sql string, _ time.Duration) {
	SlowQueryCount.WithLabelValues(sql).Inc()
}

// IncrementMutation 记录一次网关变更
func IncrementMutation(operation, status string) {
	MutationCount.WithLabelValues(operation, status).Inc()
}

func IncrementEventBroadcast(eventType string) {
	EventsBroadcast.WithLabelValues(eventType).Inc()
}

func IncrementDeliveryDropped() {
	DeliveriesDropped.Inc()
}

func IncrementRelayFailure(backend, stage string) {
	RelayFailures.WithLabelValues(backend, stage).Inc()
}
