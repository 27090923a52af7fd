package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	AssignmentsTotal       *prometheus.CounterVec
	RelayMessagesTotal     *prometheus.CounterVec
	HandoffDuration        prometheus.Histogram
	ActiveConversations    prometheus.Gauge
	SessionsExpiredTotal   prometheus.Counter
	NotifyPublishesTotal   *prometheus.CounterVec
	RequeuedWorkItemsTotal prometheus.Counter
}

// NewMetrics registers the collectors on its own registry so several
// instances can coexist in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := func(c prometheus.Collector) {
		reg.MustRegister(c)
	}

	m := &Metrics{
		AssignmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "support_assignments_total",
			Help: "Assignment attempts by work item kind and outcome",
		}, []string{"kind", "outcome"}),
		RelayMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "support_relay_messages_total",
			Help: "Relayed messages by direction and delivery status",
		}, []string{"direction", "status"}),
		HandoffDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "support_handoff_duration_seconds",
			Help:    "Time taken to hand a session over to an operator",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveConversations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "support_active_conversations",
			Help: "Currently open handed-over conversations",
		}),
		SessionsExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "support_sessions_expired_total",
			Help: "Assistant sessions removed by TTL cleanup",
		}),
		NotifyPublishesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "support_notify_publishes_total",
			Help: "Operator notification publishes by status",
		}, []string{"status"}),
		RequeuedWorkItemsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "support_requeued_work_items_total",
			Help: "Chat work items requeued after an operator went offline",
		}),
	}

	factory(m.AssignmentsTotal)
	factory(m.RelayMessagesTotal)
	factory(m.HandoffDuration)
	factory(m.ActiveConversations)
	factory(m.SessionsExpiredTotal)
	factory(m.NotifyPublishesTotal)
	factory(m.RequeuedWorkItemsTotal)

	return m
}
