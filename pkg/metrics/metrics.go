// Package metrics defines the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEvents counts inbound webhook events by outcome
	// (processed, duplicate, ignored, error).
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conversia",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Inbound webhook events by outcome.",
	}, []string{"company_id", "outcome"})

	// AgentInvocations counts agent executions by agent and result.
	AgentInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conversia",
		Subsystem: "agent",
		Name:      "invocations_total",
		Help:      "Agent invocations by agent name and result.",
	}, []string{"agent", "result"})

	// ToolExecutions counts tool executions by tool and result.
	ToolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conversia",
		Subsystem: "tools",
		Name:      "executions_total",
		Help:      "Tool executions by tool name and result.",
	}, []string{"tool", "result"})

	// GraphTransitions observes node transitions per request.
	GraphTransitions = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "conversia",
		Subsystem: "graph",
		Name:      "transitions_per_request",
		Help:      "Orchestration graph node transitions per request.",
		Buckets:   []float64{2, 4, 6, 8, 10, 15, 20, 30, 50},
	})

	// RequestDuration observes end-to-end orchestration latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "conversia",
		Subsystem: "graph",
		Name:      "request_duration_seconds",
		Help:      "End-to-end orchestration latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"company_id"})
)
