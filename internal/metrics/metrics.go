// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - WebSocket sessions and message flow
// - Long-polling fallback sessions and buffers
// - HTTP facade latency and throughput

var (
	// WebSocket Metrics
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomcast_ws_connections_total",
			Help: "Total WebSocket connections created",
		},
	)

	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomcast_ws_connections_active",
			Help: "Current active WebSocket connections",
		},
	)

	MessagesInTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomcast_ws_messages_in_total",
			Help: "Total number of messages received",
		},
	)

	MessagesOutTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomcast_ws_messages_out_total",
			Help: "Total number of messages sent",
		},
	)

	ErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomcast_ws_errors_total",
			Help: "Total number of WebSocket errors",
		},
	)

	// Long-Polling Fallback Metrics
	LPSessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomcast_ws_lp_sessions_total",
			Help: "Total long-polling sessions ever created",
		},
	)

	LPSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomcast_ws_lp_sessions_active",
			Help: "Long-polling sessions currently active (not yet expired)",
		},
	)

	LPPollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomcast_ws_lp_polls_total",
			Help: "Total HTTP /ws/poll calls",
		},
	)

	LPMessagesBuffered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomcast_ws_lp_messages_buffered",
			Help: "Messages currently buffered across long-polling sessions",
		},
	)

	LPMessagesEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomcast_ws_lp_messages_enqueued_total",
			Help: "Total messages enqueued into long-polling buffers",
		},
	)

	LPMessagesDrainedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomcast_ws_lp_messages_drained_total",
			Help: "Total messages drained via /ws/poll",
		},
	)

	// HTTP Facade Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordConnectionOpened records a new WebSocket connection.
func RecordConnectionOpened() {
	ConnectionsTotal.Inc()
	ConnectionsActive.Inc()
}

// RecordConnectionClosed records a WebSocket connection termination.
func RecordConnectionClosed() {
	ConnectionsActive.Dec()
}

// RecordMessageIn records one inbound message.
func RecordMessageIn() {
	MessagesInTotal.Inc()
}

// RecordMessagesOut records n outbound messages.
func RecordMessagesOut(n int) {
	MessagesOutTotal.Add(float64(n))
}

// RecordError records a protocol or transport error.
func RecordError() {
	ErrorsTotal.Inc()
}

// RecordLPSessionCreated records the lazy creation of a long-polling session.
func RecordLPSessionCreated() {
	LPSessionsTotal.Inc()
	LPSessionsActive.Inc()
}

// RecordLPSessionRemoved records the removal of a long-polling session whose
// buffer still held buffered messages.
func RecordLPSessionRemoved(buffered int) {
	LPSessionsActive.Dec()
	LPMessagesBuffered.Sub(float64(buffered))
}

// RecordLPPoll records one /ws/poll call.
func RecordLPPoll() {
	LPPollsTotal.Inc()
}

// RecordLPEnqueued records one enqueued message. sizeDelta is the change in
// buffer size, which is 0 when drop-head evicted the oldest entry.
func RecordLPEnqueued(sizeDelta int) {
	LPMessagesEnqueuedTotal.Inc()
	LPMessagesBuffered.Add(float64(sizeDelta))
}

// RecordLPDrained records n messages drained from a long-polling buffer.
func RecordLPDrained(n int) {
	if n <= 0 {
		return
	}
	LPMessagesDrainedTotal.Add(float64(n))
	LPMessagesBuffered.Sub(float64(n))
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRateLimitHit records a rate limit rejection for an endpoint.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SetAppInfo publishes version and build information.
func SetAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}

// FormatStatusCode converts a numeric HTTP status to its label value.
func FormatStatusCode(code int) string {
	return strconv.Itoa(code)
}
