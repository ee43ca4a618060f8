// Package metrics exposes prometheus counters for connections, decodes and
// agent requests.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostlink",
			Subsystem: "host",
			Name:      "connect_total",
			Help:      "Host connection attempts by mode, transport and result kind.",
		},
		[]string{"mode", "transport", "result"},
	)
	connectDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hostlink",
			Subsystem: "host",
			Name:      "connect_duration_seconds",
			Help:      "Host connection duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode", "transport"},
	)
	dataRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostlink",
			Subsystem: "host",
			Name:      "data_requests_total",
			Help:      "Host data requests by source (cache or channel) and result kind.",
		},
		[]string{"source", "result"},
	)
	agentRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostlink",
			Subsystem: "agent",
			Name:      "requests_total",
			Help:      "Agent frames handled by message type and result kind.",
		},
		[]string{"type", "result"},
	)
	agentConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hostlink",
			Subsystem: "agent",
			Name:      "open_connections",
			Help:      "Client connections currently open on the agent.",
		},
	)
)

// ResultOK labels a successful operation; failures use the error kind name
const ResultOK = "ok"

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(connectAttempts, connectDuration, dataRequests, agentRequests, agentConnections)
	})
}

func RecordConnect(mode, transport, result string, duration time.Duration) {
	RegisterMetrics()
	connectAttempts.WithLabelValues(mode, transport, result).Inc()
	connectDuration.WithLabelValues(mode, transport).Observe(duration.Seconds())
}

func RecordData(source, result string) {
	RegisterMetrics()
	dataRequests.WithLabelValues(source, result).Inc()
}

func RecordAgentRequest(msgType, result string) {
	RegisterMetrics()
	agentRequests.WithLabelValues(msgType, result).Inc()
}

func AgentConnOpened() {
	RegisterMetrics()
	agentConnections.Inc()
}

func AgentConnClosed() {
	RegisterMetrics()
	agentConnections.Dec()
}

// Handler serves the default registry in the prometheus text format
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}
