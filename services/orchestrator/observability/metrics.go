// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the explanation
// pipeline. Metrics are exposed via the /metrics endpoint.
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "stepsage"
	explainSubsystem = "explain"
)

// ExplainMetrics holds the Prometheus metrics for explanation operations.
type ExplainMetrics struct {
	// RequestsTotal counts API requests by endpoint and status.
	// Labels: endpoint (explain_trace, explain_structure, retrieve,
	// ingest), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// ExplainDurationSeconds measures end-to-end explanation latency.
	// Labels: level
	ExplainDurationSeconds *prometheus.HistogramVec

	// TraceSteps measures raw and retained step counts per trace.
	// Labels: stage (raw, retained)
	TraceSteps *prometheus.HistogramVec

	// RetrievalFailuresTotal counts degraded steps where knowledge
	// retrieval failed and the base explanation was used.
	RetrievalFailuresTotal prometheus.Counter

	// ActiveExplanations tracks in-flight explanation requests.
	ActiveExplanations prometheus.Gauge
}

// DefaultMetrics is the singleton instance, set by InitMetrics.
var DefaultMetrics *ExplainMetrics

// InitMetrics creates and registers all metrics. Call once at startup.
func InitMetrics() *ExplainMetrics {
	if DefaultMetrics != nil {
		return DefaultMetrics
	}

	DefaultMetrics = &ExplainMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: explainSubsystem,
			Name:      "requests_total",
			Help:      "API requests by endpoint and status",
		}, []string{"endpoint", "status"}),

		ExplainDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: explainSubsystem,
			Name:      "duration_seconds",
			Help:      "End-to-end explanation latency by level",
			Buckets:   prometheus.DefBuckets,
		}, []string{"level"}),

		TraceSteps: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: explainSubsystem,
			Name:      "trace_steps",
			Help:      "Trace step counts before and after normalization",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"stage"}),

		RetrievalFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: explainSubsystem,
			Name:      "retrieval_failures_total",
			Help:      "Steps degraded to base explanations after retrieval failure",
		}),

		ActiveExplanations: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: explainSubsystem,
			Name:      "active_explanations",
			Help:      "In-flight explanation requests",
		}),
	}
	return DefaultMetrics
}

// RecordRequest increments the request counter when metrics are enabled.
func RecordRequest(endpoint, status string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.RequestsTotal.WithLabelValues(endpoint, status).Inc()
}

// ObserveExplainDuration records one explanation's latency.
func ObserveExplainDuration(level string, seconds float64) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ExplainDurationSeconds.WithLabelValues(level).Observe(seconds)
}

// RecordRetrievalFailure counts one step degraded to its base explanation
// after a knowledge retrieval failure.
func RecordRetrievalFailure() {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.RetrievalFailuresTotal.Inc()
}

// ObserveTraceSteps records a trace's step count for one stage.
func ObserveTraceSteps(stage string, count int) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.TraceSteps.WithLabelValues(stage).Observe(float64(count))
}
