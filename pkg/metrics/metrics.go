package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 推送结果标签
const (
	PushDelivered = "delivered"
	PushFailed    = "failed"
	PushMiss      = "miss"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// 数据库慢查询计数
	DBSlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"statement"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 通知创建计数
	NotificationCreatedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_created_total",
			Help: "Total number of notifications persisted",
		},
		[]string{"type"},
	)

	// 实时推送结果计数
	NotificationPushCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_push_total",
			Help: "Real-time push attempts by outcome",
		},
		[]string{"result"}, // delivered, failed, miss
	)

	// 当前在线连接数
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_active_connections",
			Help: "Currently registered real-time connections",
		},
		[]string{"transport"},
	)

	// 领域事件处理计数
	DomainEventCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_event_total",
			Help: "Domain events consumed by routing key and status",
		},
		[]string{"routing_key", "status"}, // status: success, failed, duplicate
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementSlowQuery 记录一次慢查询
func IncrementSlowQuery(statement string, _ time.Duration) {
	DBSlowQueryCount.WithLabelValues(statement).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementNotificationCreated 增加通知创建计数
func IncrementNotificationCreated(notificationType string) {
	NotificationCreatedCount.WithLabelValues(notificationType).Inc()
}

// AddPushResult 记录推送结果
func AddPushResult(result string, n int) {
	if n <= 0 {
		return
	}
	NotificationPushCount.WithLabelValues(result).Add(float64(n))
}

// ConnectionOpened 连接注册
func ConnectionOpened(transport string) {
	ActiveConnections.WithLabelValues(transport).Inc()
}

// ConnectionClosed 连接注销
func ConnectionClosed(transport string) {
	ActiveConnections.WithLabelValues(transport).Dec()
}

// IncrementDomainEvent 增加领域事件计数
func IncrementDomainEvent(routingKey, status string) {
	DomainEventCount.WithLabelValues(routingKey, status).Inc()
}
