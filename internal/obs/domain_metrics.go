package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PriceResolutions counts discount resolutions by applied rule type.
	PriceResolutions *prometheus.CounterVec
	// FlashSaleLookups counts rule lookups by source (cache, db, fallback) and result.
	FlashSaleLookups *prometheus.CounterVec
	// CheckoutTotal counts checkout attempts by outcome.
	CheckoutTotal *prometheus.CounterVec
	// CheckoutSavings observes the discount given per placed order, in store currency.
	CheckoutSavings prometheus.Histogram
	// OrderTransitions counts order status changes.
	OrderTransitions *prometheus.CounterVec
	// NotificationsPublished counts notifications pushed to the broker by kind.
	NotificationsPublished *prometheus.CounterVec
	// RealtimeConnections tracks open websocket sessions.
	RealtimeConnections prometheus.Gauge
	// ChatMessages counts chat sends by outcome.
	ChatMessages *prometheus.CounterVec
	// JobsProcessed counts background task executions.
	JobsProcessed *prometheus.CounterVec
	// CacheRequests counts Redis JSON cache reads by result.
	CacheRequests *prometheus.CounterVec
	// EventsEmitted counts stored domain events by topic.
	EventsEmitted *prometheus.CounterVec
	// BreakerState reports each circuit breaker: 0 closed, 1 open, 2 half open.
	BreakerState *prometheus.GaugeVec
	// BreakerTransitions counts breaker state changes.
	BreakerTransitions *prometheus.CounterVec
	// DBQueryDuration records query latency in milliseconds by query name.
	DBQueryDuration *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PriceResolutions = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_resolutions_total",
			Help:      "Count of discount resolutions by applied rule type.",
		}, []string{"rule"}))
		FlashSaleLookups = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flash_sale_lookups_total",
			Help:      "Count of flash sale rule lookups by source and result.",
		}, []string{"source", "result"}))
		CheckoutTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts by outcome.",
		}, []string{"result"}))
		CheckoutSavings = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_savings",
			Help:      "Discount amount granted per placed order.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}))
		OrderTransitions = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Count of order status transitions.",
		}, []string{"from", "to"}))
		NotificationsPublished = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_published_total",
			Help:      "Count of notifications published to subscribers.",
		}, []string{"kind", "result"}))
		RealtimeConnections = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Number of open realtime sessions.",
		}))
		ChatMessages = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Count of chat message sends by outcome.",
		}, []string{"result"}))
		JobsProcessed = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Count of background task executions.",
		}, []string{"task", "result"}))
		DBQueryDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_ms",
			Help:      "Database query latency in milliseconds.",
			Buckets:   []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		}, []string{"query"}))
		CacheRequests = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Count of Redis JSON cache reads by result.",
		}, []string{"result"}))
		EventsEmitted = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_events_total",
			Help:      "Count of stored domain events by topic.",
		}, []string{"topic"}))
		BreakerState = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half open.",
		}, []string{"target"}))
		BreakerTransitions = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Count of circuit breaker state changes.",
		}, []string{"target", "from", "to"}))
	})
}

// Inc bumps a counter vector when metrics were registered. Packages call this
// so they work in tests that never register collectors.
func Inc(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}
