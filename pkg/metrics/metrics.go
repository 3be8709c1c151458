package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the call agent. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive      prometheus.Gauge
	TurnsTotal          *prometheus.CounterVec
	TransitionsRejected *prometheus.CounterVec
	SynthesisTotal      *prometheus.CounterVec
	AudioCacheHits      prometheus.Counter
	DispatchTotal       *prometheus.CounterVec
	FinalizedTotal      *prometheus.CounterVec
	WebhookErrors       *prometheus.CounterVec
	TurnDuration        prometheus.Histogram
	EventsDropped       prometheus.Counter
}

// New creates a Metrics instance with its own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sampark"
	}
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Live call sessions in the store",
		}),
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Committed dialog turns by source and target state",
		}, []string{"from", "to", "branch"}),
		TransitionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_rejected_total",
			Help:      "Proposed transitions rejected by the guard",
		}, []string{"from", "to"}),
		SynthesisTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_synthesis_total",
			Help:      "TTS synthesis requests by outcome",
		}, []string{"status"}),
		AudioCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_cache_hits_total",
			Help:      "Prompt audio served from the asset store",
		}),
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Outbound call placements by outcome",
		}, []string{"status"}),
		FinalizedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finalized_total",
			Help:      "Finalized sessions by result",
		}, []string{"result"}),
		WebhookErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_errors_total",
			Help:      "Telephony webhook failures answered with fallback markup",
		}, []string{"hook"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "listen_turn_duration_seconds",
			Help:      "Listen webhook latency including audio resolution",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_dropped_total",
			Help:      "Call events dropped because the recorder queue was full",
		}),
	}
	registry.MustRegister(
		m.SessionsActive,
		m.TurnsTotal,
		m.TransitionsRejected,
		m.SynthesisTotal,
		m.AudioCacheHits,
		m.DispatchTotal,
		m.FinalizedTotal,
		m.WebhookErrors,
		m.TurnDuration,
		m.EventsDropped,
	)
	return m
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

func (m *Metrics) Turn(from, to, branch string, seconds float64) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(from, to, branch).Inc()
	m.TurnDuration.Observe(seconds)
}

func (m *Metrics) Rejected(from, to string) {
	if m == nil {
		return
	}
	m.TransitionsRejected.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Synthesis(status string) {
	if m == nil {
		return
	}
	m.SynthesisTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.AudioCacheHits.Inc()
}

func (m *Metrics) Dispatch(status string) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) Finalized(result string) {
	if m == nil {
		return
	}
	m.FinalizedTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) WebhookError(hook string) {
	if m == nil {
		return
	}
	m.WebhookErrors.WithLabelValues(hook).Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}
