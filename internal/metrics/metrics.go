// Package metrics exposes Prometheus collectors for the audit service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Audit outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
	OutcomeInvalid = "invalid"
)

var (
	auditsTotal                *prometheus.CounterVec
	auditDurationSeconds       prometheus.Histogram
	activeAudits               prometheus.Gauge
	queuedAudits               prometheus.Gauge
	rateLimitRejectionsTotal   prometheus.Counter
	busyRejectionsTotal        prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	pagespeedUpstreamTotal     *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		auditsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankrise_audits_total",
				Help: "Total number of finished audits, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		auditDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rankrise_audit_duration_seconds",
				Help:    "Histogram of audit run times, excluding queue wait.",
				Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 90, 120},
			},
		)

		activeAudits = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rankrise_active_audits",
				Help: "Number of audits currently running.",
			},
		)

		queuedAudits = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rankrise_queued_audits",
				Help: "Number of audits waiting for a free slot.",
			},
		)

		rateLimitRejectionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rankrise_rate_limit_rejections_total",
				Help: "Total number of audit requests rejected by the per-client limiter.",
			},
		)

		busyRejectionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rankrise_busy_rejections_total",
				Help: "Total number of audit requests rejected because the queue was full.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"method", "route"},
		)

		pagespeedUpstreamTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankrise_pagespeed_upstream_requests_total",
				Help: "Total number of PageSpeed Insights calls, labeled by response code.",
			},
			[]string{"code"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAudit records a finished audit.
func ObserveAudit(outcome string, duration time.Duration) {
	auditsTotal.WithLabelValues(outcome).Inc()
	auditDurationSeconds.Observe(duration.Seconds())
}

// SetActiveAudits sets the running audit gauge.
func SetActiveAudits(n int) {
	activeAudits.Set(float64(n))
}

// SetQueuedAudits sets the waiting audit gauge.
func SetQueuedAudits(n int) {
	queuedAudits.Set(float64(n))
}

// ObserveRateLimited increments the limiter rejection counter.
func ObserveRateLimited() {
	rateLimitRejectionsTotal.Inc()
}

// ObserveBusy increments the full-queue rejection counter.
func ObserveBusy() {
	busyRejectionsTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObservePageSpeedUpstream counts one upstream call. Transport errors use
// code 0.
func ObservePageSpeedUpstream(code int) {
	pagespeedUpstreamTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}
