// Package metrics holds the Prometheus collectors of the alerting pipeline.
package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ogulcanaydogan/finalert/pkg/model"
)

const namespace = "finalert"

// Metrics records rule evaluation and notification activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry                *prometheus.Registry
	rulesEvaluated          *prometheus.CounterVec
	rulesTriggered          *prometheus.CounterVec
	ruleErrors              *prometheus.CounterVec
	notificationsCreated    *prometheus.CounterVec
	notificationsSuppressed prometheus.Counter
	notificationsRead       prometheus.Counter
	checkDuration           prometheus.Histogram
}

// New creates the collectors on a fresh registry that also exposes Go and
// process metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegisterer(reg)
}

// NewWithRegisterer registers the collectors on reg. If reg is a
// *prometheus.Registry it is also used for Push and the /metrics handler.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rulesEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_evaluated_total",
			Help:      "Alert rules evaluated, by alert type.",
		}, []string{"alert_type"}),
		rulesTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_triggered_total",
			Help:      "Alert rules whose condition held, by alert type.",
		}, []string{"alert_type"}),
		ruleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_errors_total",
			Help:      "Alert rules that failed to evaluate or emit, by alert type.",
		}, []string{"alert_type"}),
		notificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Notifications persisted, by category.",
		}, []string{"category"}),
		notificationsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_suppressed_total",
			Help:      "Rule notifications skipped because their dedup key already existed.",
		}),
		notificationsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_read_total",
			Help:      "Notifications marked as read.",
		}),
		checkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Duration of alert rule check runs.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
	reg.MustRegister(
		m.rulesEvaluated,
		m.rulesTriggered,
		m.ruleErrors,
		m.notificationsCreated,
		m.notificationsSuppressed,
		m.notificationsRead,
		m.checkDuration,
	)
	if r, ok := reg.(*prometheus.Registry); ok {
		m.registry = r
	}
	return m
}

// Registry returns the registry the collectors live on, or nil.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RuleEvaluated(t model.AlertType) {
	if m == nil {
		return
	}
	m.rulesEvaluated.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) RuleTriggered(t model.AlertType) {
	if m == nil {
		return
	}
	m.rulesTriggered.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) RuleError(t model.AlertType) {
	if m == nil {
		return
	}
	m.ruleErrors.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) NotificationCreated(category string) {
	if m == nil {
		return
	}
	m.notificationsCreated.WithLabelValues(category).Inc()
}

func (m *Metrics) NotificationSuppressed() {
	if m == nil {
		return
	}
	m.notificationsSuppressed.Inc()
}

func (m *Metrics) NotificationsRead(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.notificationsRead.Add(float64(n))
}

func (m *Metrics) ObserveCheck(d time.Duration) {
	if m == nil {
		return
	}
	m.checkDuration.Observe(d.Seconds())
}

// Push sends the registry to a Prometheus Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, endpoint, job string) error {
	if m == nil || m.registry == nil {
		return nil
	}
	if strings.TrimSpace(endpoint) == "" {
		return errors.New("pushgateway endpoint is required")
	}
	if strings.TrimSpace(job) == "" {
		return errors.New("pushgateway job is required")
	}
	return push.New(endpoint, job).Gatherer(m.registry).PushContext(ctx)
}
