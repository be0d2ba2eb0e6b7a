package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink exposes the metrics plane's counters and gauges through a
// prometheus.Registry: an active-connections gauge, message/byte counters,
// an error-kind counter family, and a processing-time histogram.
type PrometheusSink struct {
	registry *prometheus.Registry

	messagesReceived  prometheus.Counter
	bytesReceived     prometheus.Counter
	clientsConnected  prometheus.Counter
	activeConnections prometheus.Gauge
	errorsByKind      *prometheus.CounterVec
	processingTime    prometheus.Histogram

	fallback *AtomicSink // backs Snapshot(), since Prometheus counters are write-only
}

// NewPrometheusSink registers the metrics plane's metric families on a new
// registry and returns a Sink backed by it.
func NewPrometheusSink() *PrometheusSink {
	reg := prometheus.NewRegistry()

	s := &PrometheusSink{
		registry: reg,
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grid_heartbeat_messages_received_total",
			Help: "Total heartbeat frames received and parsed.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grid_heartbeat_bytes_received_total",
			Help: "Total bytes received across all heartbeat connections.",
		}),
		clientsConnected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grid_heartbeat_clients_connected_total",
			Help: "Total number of heartbeat connections ever accepted.",
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grid_heartbeat_active_connections",
			Help: "Currently open heartbeat connections.",
		}),
		errorsByKind: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grid_heartbeat_errors_total",
			Help: "Heartbeat receiver errors by kind.",
		}, []string{"kind"}),
		processingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grid_heartbeat_processing_seconds",
			Help:    "Per-event processing latency.",
			Buckets: []float64{1e-6, 1e-5, 1e-4, 1e-3, 1e-2, 1e-1, 1},
		}),
		fallback: NewAtomicSink(),
	}

	reg.MustRegister(
		s.messagesReceived, s.bytesReceived, s.clientsConnected,
		s.activeConnections, s.errorsByKind, s.processingTime,
	)

	return s
}

// Registry returns the underlying prometheus.Registry for exposition over
// an HTTP handler (e.g. promhttp.HandlerFor).
func (s *PrometheusSink) Registry() *prometheus.Registry {
	return s.registry
}

func (s *PrometheusSink) IncMessagesReceived() {
	s.messagesReceived.Inc()
	s.fallback.IncMessagesReceived()
}

func (s *PrometheusSink) AddBytesReceived(n int64) {
	s.bytesReceived.Add(float64(n))
	s.fallback.AddBytesReceived(n)
}

func (s *PrometheusSink) IncClientsConnected() {
	s.clientsConnected.Inc()
	s.activeConnections.Inc()
	s.fallback.IncClientsConnected()
}

func (s *PrometheusSink) DecClientsConnected() {
	s.activeConnections.Dec()
	s.fallback.DecClientsConnected()
}

func (s *PrometheusSink) IncError(kind string) {
	s.errorsByKind.WithLabelValues(kind).Inc()
	s.fallback.IncError(kind)
}

func (s *PrometheusSink) ObserveProcessingTime(d time.Duration) {
	s.processingTime.Observe(d.Seconds())
	s.fallback.ObserveProcessingTime(d)
}

func (s *PrometheusSink) Snapshot() Snapshot {
	return s.fallback.Snapshot()
}
