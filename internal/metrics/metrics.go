package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ff_marketplace"

// Outcome labels of a reconciled event
const (
	OutcomeApplied    = "applied"
	OutcomeDuplicate  = "duplicate"
	OutcomeLookupMiss = "lookup_miss"
	OutcomeInvariant  = "invariant"
	OutcomeInvalid    = "invalid"
	OutcomeError      = "error"
	OutcomeUnknown    = "unknown"
)

type pipelineMetrics struct {
	events             *prometheus.CounterVec
	eventDuration      *prometheus.HistogramVec
	sideEffectFailures *prometheus.CounterVec
	published          *prometheus.CounterVec
}

var (
	pipelineOnce     sync.Once
	pipelineRegistry *pipelineMetrics
)

// Pipeline returns the collectors of the event reconciliation pipeline.
// They are registered with the default prometheus registry on first use.
func Pipeline() *pipelineMetrics {
	pipelineOnce.Do(func() {
		pipelineRegistry = &pipelineMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Canonical events processed by the reconciliation engine, by outcome.",
			}, []string{"chain", "kind", "outcome"}),
			eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "event_duration_seconds",
				Help:      "Time spent applying a canonical event including side effects.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"kind"}),
			sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "side_effect_failures_total",
				Help:      "Side-effect handler failures, by message kind and handler.",
			}, []string{"kind", "handler"}),
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "published_events_total",
				Help:      "Raw contract events published to the message broker.",
			}, []string{"chain"}),
		}
		prometheus.MustRegister(
			pipelineRegistry.events,
			pipelineRegistry.eventDuration,
			pipelineRegistry.sideEffectFailures,
			pipelineRegistry.published,
		)
	})
	return pipelineRegistry
}

// RecordEvent counts a processed event and observes its duration
func (m *pipelineMetrics) RecordEvent(chain, kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = OutcomeUnknown
	}
	m.events.WithLabelValues(chain, kind, outcome).Inc()
	m.eventDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordSideEffectFailure counts a failed side-effect handler
func (m *pipelineMetrics) RecordSideEffectFailure(kind, handler string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(kind, handler).Inc()
}

// RecordPublished counts a raw event published for the chain
func (m *pipelineMetrics) RecordPublished(chain string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(chain).Inc()
}

// EventsCounter exposes the processed events counter
func (m *pipelineMetrics) EventsCounter() *prometheus.CounterVec {
	return m.events
}

// SideEffectFailuresCounter exposes the side-effect failure counter
func (m *pipelineMetrics) SideEffectFailuresCounter() *prometheus.CounterVec {
	return m.sideEffectFailures
}
