// Package metrics собирает прикладные Prometheus-метрики магазина.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для label result.
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultCancelled = "cancelled"
)

// StoreMetrics содержит метрики заказов, сессий, каталога, realtime и HTTP.
// Все методы безопасны для nil-получателя.
type StoreMetrics struct {
	ordersPlaced          prometheus.Counter
	orderTotal            prometheus.Histogram
	statusUpdates         *prometheus.CounterVec
	ordersDeleted         prometheus.Counter
	counterUpdateFailures prometheus.Counter
	timelineEvents        prometheus.Counter
	outboxEvents          prometheus.Counter

	signIns        *prometheus.CounterVec
	activeSessions prometheus.Gauge

	catalogFetches  *prometheus.CounterVec
	catalogDuration prometheus.Histogram

	realtimeSubscribers prometheus.Gauge
	realtimeDropped     prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewStoreMetrics регистрирует метрики в DefaultRegisterer.
func NewStoreMetrics() *StoreMetrics {
	return NewStoreMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStoreMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewStoreMetricsWithRegisterer(registerer prometheus.Registerer) *StoreMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StoreMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "blackstore_orders_placed_total",
			Help: "Total number of orders placed",
		}),
		orderTotal: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "blackstore_order_total_amount",
			Help:    "Distribution of order totals in currency units",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
		statusUpdates: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "blackstore_order_status_updates_total",
			Help: "Total number of order status updates by target status",
		}, []string{"status"}),
		ordersDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "blackstore_orders_deleted_total",
			Help: "Total number of deleted orders",
		}),
		counterUpdateFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "blackstore_user_counter_update_failures_total",
			Help: "Orders written whose user counters could not be updated",
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "blackstore_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "blackstore_outbox_events_enqueued_total",
			Help: "Total number of order events enqueued to the outbox",
		}),
		signIns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "blackstore_sign_ins_total",
			Help: "Sign-in attempts by result",
		}, []string{"result"}),
		activeSessions: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "blackstore_active_sessions",
			Help: "Number of live sessions",
		}),
		catalogFetches: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "blackstore_catalog_fetches_total",
			Help: "Remote catalog fetches by result",
		}, []string{"result"}),
		catalogDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "blackstore_catalog_fetch_duration_seconds",
			Help:    "Duration of remote catalog fetches",
			Buckets: prometheus.DefBuckets,
		}),
		realtimeSubscribers: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "blackstore_realtime_subscribers",
			Help: "Number of active realtime subscriptions",
		}),
		realtimeDropped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "blackstore_realtime_dropped_changes_total",
			Help: "Changes dropped because a subscriber buffer was full",
		}),
		httpRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "blackstore_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		httpDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "blackstore_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"}),
	}
}

// RecordOrderPlaced учитывает оформленный заказ и его сумму.
func (m *StoreMetrics) RecordOrderPlaced(total float64) {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
	m.orderTotal.Observe(total)
}

// RecordStatusUpdate учитывает смену статуса.
func (m *StoreMetrics) RecordStatusUpdate(status string) {
	if m == nil {
		return
	}
	m.statusUpdates.WithLabelValues(status).Inc()
}

// RecordOrderDeleted учитывает удаление заказа.
func (m *StoreMetrics) RecordOrderDeleted() {
	if m == nil {
		return
	}
	m.ordersDeleted.Inc()
}

// RecordCounterUpdateFailure учитывает заказ, по которому не обновились счётчики.
func (m *StoreMetrics) RecordCounterUpdateFailure() {
	if m == nil {
		return
	}
	m.counterUpdateFailures.Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *StoreMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *StoreMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}

// RecordSignIn учитывает попытку входа.
func (m *StoreMetrics) RecordSignIn(result string) {
	if m == nil {
		return
	}
	m.signIns.WithLabelValues(result).Inc()
}

// SetActiveSessions выставляет число живых сессий.
func (m *StoreMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// RecordCatalogFetch учитывает загрузку каталога.
func (m *StoreMetrics) RecordCatalogFetch(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.catalogFetches.WithLabelValues(result).Inc()
	m.catalogDuration.Observe(duration.Seconds())
}

// RealtimeSubscribed увеличивает число подписчиков.
func (m *StoreMetrics) RealtimeSubscribed() {
	if m == nil {
		return
	}
	m.realtimeSubscribers.Inc()
}

// RealtimeUnsubscribed уменьшает число подписчиков.
func (m *StoreMetrics) RealtimeUnsubscribed() {
	if m == nil {
		return
	}
	m.realtimeSubscribers.Dec()
}

// RecordRealtimeDropped учитывает потерянное уведомление.
func (m *StoreMetrics) RecordRealtimeDropped() {
	if m == nil {
		return
	}
	m.realtimeDropped.Inc()
}

// RecordHTTPRequest учитывает обработанный HTTP-запрос.
func (m *StoreMetrics) RecordHTTPRequest(method, route, code string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
