// Package metrics exposes Prometheus counters for batch runs. Metrics
// are optional: every increment helper is safe to call when InitMetrics
// was never invoked.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	usersTotal         *prometheus.CounterVec
	actionsTotal       *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec

	metricsOnce       sync.Once
	metricsRegistered bool
)

// InitMetrics registers the counters with the default registry. Called
// once at startup when metrics are enabled.
func InitMetrics() {
	metricsOnce.Do(func() {
		usersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "iamrotate_users_processed_total",
			Help: "Total number of roster users processed, by lifecycle state",
		}, []string{"state"})

		actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "iamrotate_actions_executed_total",
			Help: "Total number of lifecycle actions executed, by kind and result",
		}, []string{"action", "result"})

		notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "iamrotate_notifications_total",
			Help: "Total number of credential delivery notifications, by result",
		}, []string{"result"})

		metricsRegistered = true
	})
}

// IncUser records one decided roster row.
func IncUser(state string) {
	if metricsRegistered {
		usersTotal.WithLabelValues(state).Inc()
	}
}

// IncAction records one executed action.
func IncAction(action string, ok bool) {
	if metricsRegistered {
		actionsTotal.WithLabelValues(action, resultLabel(ok)).Inc()
	}
}

// IncNotification records one notification attempt.
func IncNotification(ok bool) {
	if metricsRegistered {
		notificationsTotal.WithLabelValues(resultLabel(ok)).Inc()
	}
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
