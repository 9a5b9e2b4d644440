package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	TurnsByIntent    *prometheus.CounterVec
	TurnFailures     *prometheus.CounterVec
	LeadCaptures     *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	WSMessages       *prometheus.CounterVec
	RetrievalLatency prometheus.Histogram
	TurnLatency      prometheus.Histogram

	stages *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active chat sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		TurnsByIntent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Processed conversation turns by routed intent.",
		}, []string{"intent"}),
		TurnFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_failures_total",
			Help:      "Turns that failed without mutating session state, by cause.",
		}, []string{"cause"}),
		LeadCaptures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lead_captures_total",
			Help:      "Lead capture attempts by result.",
		}, []string{"result"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "External provider errors by provider and code.",
		}, []string{"provider", "code"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		RetrievalLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_latency_ms",
			Help:      "Latency of embed+search retrieval in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "End-to-end turn processing latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		stages: newTurnStageWindow(256),
	}
}

func (m *Metrics) ObserveRetrievalLatency(d time.Duration) {
	m.RetrievalLatency.Observe(float64(d.Milliseconds()))
	m.stages.Observe("retrieval", float64(d.Milliseconds()))
}

func (m *Metrics) ObserveTurnLatency(d time.Duration) {
	m.TurnLatency.Observe(float64(d.Milliseconds()))
	m.stages.Observe("turn", float64(d.Milliseconds()))
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stages.Observe(stage, float64(d.Milliseconds()))
}

func (m *Metrics) StageSnapshot() TurnStageSnapshot {
	return m.stages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
