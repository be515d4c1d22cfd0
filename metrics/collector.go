// Package metrics exposes Prometheus collectors for parser and upstream activity.
//
// All Collector methods are nil-receiver safe, so a disabled collector is just nil.
package metrics

import (
	"time"

	"artifact-proxy/parser"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "artifact_proxy"

// Outcome labels for upstream requests
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector holds the service's Prometheus collectors
type Collector struct {
	artifacts     *prometheus.CounterVec
	actions       *prometheus.CounterVec
	streamUpdates prometheus.Counter
	parseDuration prometheus.Histogram
	sessions      prometheus.Gauge
	upstream      *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them with reg. A nil reg
// uses the default registerer. Registration errors panic, like promauto.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		artifacts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifacts_total",
				Help:      "Artifact lifecycle events seen by the parser.",
			},
			[]string{"event"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Action lifecycle events seen by the parser.",
			},
			[]string{"event", "type"},
		),
		streamUpdates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_stream_updates_total",
				Help:      "Partial file action bodies delivered while streaming.",
			},
		),
		parseDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "parse_duration_seconds",
				Help:      "Time spent in a single Parse call.",
				Buckets:   []float64{.00001, .0001, .0005, .001, .005, .01, .05, .1},
			},
		),
		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions",
				Help:      "Parser sessions currently held in the session store.",
			},
		),
		upstream: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Requests sent to upstream model endpoints.",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(c.artifacts, c.actions, c.streamUpdates, c.parseDuration, c.sessions, c.upstream)
	return c
}

// Callbacks returns parser callbacks that count lifecycle events. Combine it
// with other callbacks via parser.Merge.
func (c *Collector) Callbacks() parser.Callbacks {
	if c == nil {
		return parser.Callbacks{}
	}
	return parser.Callbacks{
		OnArtifactOpen: func(parser.ArtifactCallbackData) {
			c.artifacts.WithLabelValues("open").Inc()
		},
		OnArtifactClose: func(parser.ArtifactCallbackData) {
			c.artifacts.WithLabelValues("close").Inc()
		},
		OnActionOpen: func(data parser.ActionCallbackData) {
			c.actions.WithLabelValues("open", data.Action.Type.String()).Inc()
		},
		OnActionStream: func(parser.ActionCallbackData) {
			c.streamUpdates.Inc()
		},
		OnActionClose: func(data parser.ActionCallbackData) {
			c.actions.WithLabelValues("close", data.Action.Type.String()).Inc()
		},
	}
}

// ObserveParse records the duration of one Parse call
func (c *Collector) ObserveParse(d time.Duration) {
	if c == nil {
		return
	}
	c.parseDuration.Observe(d.Seconds())
}

// SetSessions records the current session count
func (c *Collector) SetSessions(n int) {
	if c == nil {
		return
	}
	c.sessions.Set(float64(n))
}

// UpstreamRequest counts one upstream request by outcome
func (c *Collector) UpstreamRequest(outcome string) {
	if c == nil {
		return
	}
	c.upstream.WithLabelValues(outcome).Inc()
}
