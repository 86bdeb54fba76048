// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "merchpos"

// Metrics groups HTTP and domain collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	transactions        *prometheus.CounterVec
	itemsSold           prometheus.Counter
	partialTransactions prometheus.Counter
	stockAdjustments    *prometheus.CounterVec
	registrations       *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Recorded sales by payment method.",
		}, []string{"payment_method"}),
		itemsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_sold_total",
			Help:      "Units sold across all transactions.",
		}),
		partialTransactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_transactions_total",
			Help:      "Transactions recorded whose stock updates did not all complete.",
		}),
		stockAdjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Stock counter writes by kind.",
		}, []string{"kind"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "User registrations by resulting status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.transactions, m.itemsSold,
		m.partialTransactions, m.stockAdjustments, m.registrations)
	return m
}

// ObserveHTTP records one finished request. route is the mux pattern, never the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// TransactionRecorded counts a sale and its units.
func (m *Metrics) TransactionRecorded(paymentMethod string, units int) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(paymentMethod).Inc()
	m.itemsSold.Add(float64(units))
}

// PartialTransaction counts a sale whose stock updates failed midway.
func (m *Metrics) PartialTransaction() {
	if m == nil {
		return
	}
	m.partialTransactions.Inc()
}

// StockAdjusted counts a write to a stock counter. kind is one of event, global, set, reconcile.
func (m *Metrics) StockAdjusted(kind string) {
	if m == nil {
		return
	}
	m.stockAdjustments.WithLabelValues(kind).Inc()
}

// UserRegistered counts a registration by its resulting status.
func (m *Metrics) UserRegistered(status string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(status).Inc()
}
