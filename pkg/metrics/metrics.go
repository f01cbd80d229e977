// Package metrics exposes Prometheus instrumentation for the coordination
// runtime, following the global-vars-plus-init-registration idiom used by
// the teacher's pkg/metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	AgentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conclave_agents_total",
			Help: "Total number of registered agents by lifecycle state",
		},
		[]string{"state"},
	)

	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conclave_tasks_total",
			Help: "Total number of tasks by status",
		},
		[]string{"status"},
	)

	KnowledgeEntriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "conclave_knowledge_entries_total",
			Help: "Total number of knowledge base entries across all keys",
		},
	)

	MessagesDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conclave_messages_dispatched_total",
			Help: "Total number of messages dispatched to a handler, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	MessagesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conclave_messages_dropped_total",
			Help: "Total number of messages dropped by mailbox overflow or retention sweep",
		},
		[]string{"reason"},
	)

	RestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conclave_supervisor_restarts_total",
			Help: "Total number of child restarts performed by supervisors",
		},
		[]string{"strategy"},
	)

	VotesFinalizedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conclave_votes_finalized_total",
			Help: "Total number of votes finalised, by type and whether a winner was produced",
		},
		[]string{"type", "decided"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conclave_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conclave_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(
		AgentsTotal,
		TasksTotal,
		KnowledgeEntriesTotal,
		MessagesDispatchedTotal,
		MessagesDroppedTotal,
		RestartsTotal,
		VotesFinalizedTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}
