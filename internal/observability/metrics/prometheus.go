package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// PrivacyMetrics provides Prometheus-based metrics for the privacy core
type PrivacyMetrics struct {
	logger   *logrus.Logger
	registry *prometheus.Registry
	config   *Config

	privacyBudgetRemaining prometheus.Gauge
	privacyBudgetSpent     prometheus.Gauge
	privateQueriesTotal    *prometheus.CounterVec
	erasureRequestsTotal   *prometheus.CounterVec
	recordsDestroyedTotal  *prometheus.CounterVec
	sweepDuration          prometheus.Histogram
	operatorQueueDepth     prometheus.Gauge
}

// Config configures metrics collection
type Config struct {
	Enabled   bool   `json:"enabled"`
	Path      string `json:"path"`
	Namespace string `json:"namespace"`
}

// DefaultConfig returns the default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Path:      "/metrics",
		Namespace: "aerofusion_privacy",
	}
}

// NewPrivacyMetrics creates and registers the privacy metrics set
func NewPrivacyMetrics(config *Config, logger *logrus.Logger) (*PrivacyMetrics, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	pm := &PrivacyMetrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),
		config:   config,
	}
	pm.initializeMetrics()

	if err := pm.registerMetrics(); err != nil {
		return nil, err
	}
	return pm, nil
}

func (pm *PrivacyMetrics) initializeMetrics() {
	namespace := pm.config.Namespace

	pm.privacyBudgetRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_epsilon_remaining",
			Help:      "Privacy budget epsilon remaining in the ledger",
		},
	)

	pm.privacyBudgetSpent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_epsilon_spent",
			Help:      "Privacy budget epsilon spent since the last reset",
		},
	)

	pm.privateQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "private_queries_total",
			Help:      "Total number of differentially private queries",
		},
		[]string{"query", "status"},
	)

	pm.erasureRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "erasure_requests_total",
			Help:      "Total number of right-to-erasure requests",
		},
		[]string{"status"},
	)

	pm.recordsDestroyedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_destroyed_total",
			Help:      "Total number of records destroyed",
		},
		[]string{"method", "operator"},
	)

	pm.sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retention_sweep_duration_seconds",
			Help:      "Retention sweep duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	pm.operatorQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operator_queue_depth",
			Help:      "Failed destructions awaiting manual intervention",
		},
	)
}

func (pm *PrivacyMetrics) registerMetrics() error {
	collectors := []prometheus.Collector{
		pm.privacyBudgetRemaining,
		pm.privacyBudgetSpent,
		pm.privateQueriesTotal,
		pm.erasureRequestsTotal,
		pm.recordsDestroyedTotal,
		pm.sweepDuration,
		pm.operatorQueueDepth,
	}
	for _, c := range collectors {
		if err := pm.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns the HTTP handler serving the metric exposition endpoint
func (pm *PrivacyMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// SetBudget updates the ledger gauges
func (pm *PrivacyMetrics) SetBudget(remaining, spent float64) {
	pm.privacyBudgetRemaining.Set(remaining)
	pm.privacyBudgetSpent.Set(spent)
}

// RecordPrivateQuery counts one private query by name and outcome
func (pm *PrivacyMetrics) RecordPrivateQuery(query, status string) {
	pm.privateQueriesTotal.WithLabelValues(query, status).Inc()
}

// RecordErasureRequest counts one erasure request by terminal status
func (pm *PrivacyMetrics) RecordErasureRequest(status string) {
	pm.erasureRequestsTotal.WithLabelValues(status).Inc()
}

// RecordDestruction counts one destroyed record
func (pm *PrivacyMetrics) RecordDestruction(method, operator string) {
	pm.recordsDestroyedTotal.WithLabelValues(method, operator).Inc()
}

// RecordSweep observes one retention sweep
func (pm *PrivacyMetrics) RecordSweep(duration time.Duration) {
	pm.sweepDuration.Observe(duration.Seconds())
}

// SetOperatorQueueDepth updates the manual-intervention queue gauge
func (pm *PrivacyMetrics) SetOperatorQueueDepth(depth int) {
	pm.operatorQueueDepth.Set(float64(depth))
}
