// Package metrics exposes pipeline counters on the admin server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmailsIngested counts raw emails persisted by the ingester.
	EmailsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alertops_emails_ingested_total",
		Help: "Raw emails persisted from the mailbox.",
	})

	// StageProcessed counts stage outcomes.
	StageProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alertops_stage_processed_total",
		Help: "Messages handled per stage and outcome.",
	}, []string{"stage", "outcome"})

	// DeadLettered counts messages parked on a DLQ.
	DeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alertops_dead_lettered_total",
		Help: "Messages routed to a dead-letter queue.",
	}, []string{"queue"})

	// TicketsCreated counts tracker tickets opened by the actioner.
	TicketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alertops_tickets_created_total",
		Help: "Tracker tickets created.",
	})

	// AlertsSuppressed counts suppression decisions by kind:
	// batch, window, maintenance, open_ticket, informational.
	AlertsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alertops_alerts_suppressed_total",
		Help: "Alerts suppressed without a ticket.",
	}, []string{"kind"})

	// Notifications counts chat notifications by result.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alertops_notifications_total",
		Help: "Chat notifications posted, by result.",
	}, []string{"result"})

	// ConsumerRestarts counts supervisor-initiated consumer restarts.
	ConsumerRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alertops_consumer_restarts_total",
		Help: "Consumer restarts performed by the supervisor.",
	}, []string{"consumer"})
)
