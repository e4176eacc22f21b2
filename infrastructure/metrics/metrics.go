// Package metrics provides Prometheus metrics collection
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/modsentinel/automod/infrastructure/runtime"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics (webhook ingress + admin API)
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Cascade metrics
	CascadeDecisionsTotal  *prometheus.CounterVec
	CascadeLayerDuration   *prometheus.HistogramVec
	CascadeEarlyExitsTotal *prometheus.CounterVec

	// Analyzer / provider metrics
	ProviderCallsTotal    *prometheus.CounterVec
	ProviderCallDuration  *prometheus.HistogramVec
	AIBatchSize           prometheus.Histogram
	CoalescerWaitDuration prometheus.Histogram

	// Cost tracker metrics
	CostRecordedCentsTotal *prometheus.CounterVec
	BudgetAlertsTotal      *prometheus.CounterVec

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	StoreConnectionsOpen   prometheus.Gauge

	// Service health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all collectors registered
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP metrics
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		// Error metrics
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errors_total",
				Help: "Total number of errors",
			},
			[]string{"service", "type", "operation"},
		),

		// Cascade metrics
		CascadeDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cascade_decisions_total",
				Help: "Total number of cascade decisions by layer and action",
			},
			[]string{"service", "layer", "action"},
		),
		CascadeLayerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cascade_layer_duration_seconds",
				Help:    "Time spent evaluating a single cascade layer",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "layer"},
		),
		CascadeEarlyExitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cascade_early_exits_total",
				Help: "Total number of cascade evaluations that exited before reaching layer 3",
			},
			[]string{"service", "reason"},
		),

		// Analyzer / provider metrics
		ProviderCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_calls_total",
				Help: "Total number of outbound LLM provider calls",
			},
			[]string{"service", "provider", "status"},
		),
		ProviderCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_call_duration_seconds",
				Help:    "LLM provider call duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"service", "provider"},
		),
		AIBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ai_batch_size",
				Help:    "Number of questions dispatched per AI batch",
				Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			},
		),
		CoalescerWaitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coalescer_wait_duration_seconds",
				Help:    "Time a follower spends waiting for a leader's coalesced analysis",
				Buckets: []float64{.1, .5, 1, 2, 5, 10, 20, 30},
			},
		),

		// Cost tracker metrics
		CostRecordedCentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cost_recorded_cents_total",
				Help: "Total cost recorded in cents by provider",
			},
			[]string{"service", "provider"},
		),
		BudgetAlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_alerts_total",
				Help: "Total number of budget alerts emitted by level",
			},
			[]string{"service", "level"},
		),

		// Store metrics
		StoreOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_operations_total",
				Help: "Total number of key-value store operations",
			},
			[]string{"service", "operation", "status"},
		),
		StoreOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "store_operation_duration_seconds",
				Help:    "Key-value store operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"service", "operation"},
		),
		StoreConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "store_connections_open",
				Help: "Current number of open key-value store connections",
			},
		),

		// Service health
		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Service information",
			},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.CascadeDecisionsTotal,
			m.CascadeLayerDuration,
			m.CascadeEarlyExitsTotal,
			m.ProviderCallsTotal,
			m.ProviderCallDuration,
			m.AIBatchSize,
			m.CoalescerWaitDuration,
			m.CostRecordedCentsTotal,
			m.BudgetAlertsTotal,
			m.StoreOperationsTotal,
			m.StoreOperationDuration,
			m.StoreConnectionsOpen,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", getEnvironment()).Set(1)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError records an error
func (m *Metrics) RecordError(service, errorType, operation string) {
	m.ErrorsTotal.WithLabelValues(service, errorType, operation).Inc()
}

// RecordCascadeDecision records the outcome of a cascade evaluation.
func (m *Metrics) RecordCascadeDecision(service, layer, action string, duration time.Duration) {
	m.CascadeDecisionsTotal.WithLabelValues(service, layer, action).Inc()
	m.CascadeLayerDuration.WithLabelValues(service, layer).Observe(duration.Seconds())
}

// RecordCascadeEarlyExit records a cascade evaluation that short-circuited
// before reaching the expensive layer 3 analyzer.
func (m *Metrics) RecordCascadeEarlyExit(service, reason string) {
	m.CascadeEarlyExitsTotal.WithLabelValues(service, reason).Inc()
}

// RecordProviderCall records an outbound LLM provider call.
func (m *Metrics) RecordProviderCall(service, provider, status string, duration time.Duration) {
	m.ProviderCallsTotal.WithLabelValues(service, provider, status).Inc()
	m.ProviderCallDuration.WithLabelValues(service, provider).Observe(duration.Seconds())
}

// RecordAIBatchSize records the number of questions dispatched in one AI batch.
func (m *Metrics) RecordAIBatchSize(size int) {
	m.AIBatchSize.Observe(float64(size))
}

// RecordCoalescerWait records how long a follower waited for a leader's result.
func (m *Metrics) RecordCoalescerWait(duration time.Duration) {
	m.CoalescerWaitDuration.Observe(duration.Seconds())
}

// RecordCost records cost in cents attributed to a provider.
func (m *Metrics) RecordCost(service, provider string, cents int64) {
	m.CostRecordedCentsTotal.WithLabelValues(service, provider).Add(float64(cents))
}

// RecordBudgetAlert records a budget alert emission by level.
func (m *Metrics) RecordBudgetAlert(service, level string) {
	m.BudgetAlertsTotal.WithLabelValues(service, level).Inc()
}

// RecordStoreOperation records a key-value store operation.
func (m *Metrics) RecordStoreOperation(service, operation, status string, duration time.Duration) {
	m.StoreOperationsTotal.WithLabelValues(service, operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// SetStoreConnections sets the number of open key-value store connections
func (m *Metrics) SetStoreConnections(count int) {
	m.StoreConnectionsOpen.Set(float64(count))
}

// UpdateUptime updates the service uptime
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// IncrementInFlight increments the in-flight requests counter
func (m *Metrics) IncrementInFlight() {
	m.RequestsInFlight.Inc()
}

// DecrementInFlight decrements the in-flight requests counter
func (m *Metrics) DecrementInFlight() {
	m.RequestsInFlight.Dec()
}

// Helper functions

func getEnvironment() string {
	return string(runtime.Env())
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
// - production: disabled unless explicitly enabled via METRICS_ENABLED
// - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return !runtime.IsProduction()
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Global metrics instance
var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("unknown")
	}
	return globalMetrics
}
