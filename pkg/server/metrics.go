package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/vdombridge/pkg/protocol"
)

// MetricsNamespace prefixes every metric exported by the server.
const MetricsNamespace = "vdombridge"

// Metrics holds the Prometheus collectors for listener, bridges and actors.
// It implements actor.Observer so the same instance can be handed to every
// per-connection actor.
type Metrics struct {
	connectionsActive  prometheus.Gauge
	connectionsTotal   prometheus.Counter
	rejectedTotal      *prometheus.CounterVec
	actionsReceived    prometheus.Counter
	decodeErrors       prometheus.Counter
	droppedMessages    *prometheus.CounterVec
	transportErrors    *prometheus.CounterVec
	transitions        *prometheus.CounterVec
	reduceDuration     prometheus.Histogram
	snapshotsPublished prometheus.Counter
	snapshotsSent      prometheus.Counter
	snapshotBytes      prometheus.Counter
	deferredScheduled  prometheus.Counter
}

// NewMetrics creates and registers the server metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "connections_active",
			Help:      "Number of bridged WebSocket connections",
		}),
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "connections_total",
			Help:      "Total number of accepted WebSocket connections",
		}),
		rejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "connections_rejected_total",
			Help:      "Connections rejected before the bridge started, by reason",
		}, []string{"reason"}),
		actionsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "actions_received_total",
			Help:      "Inbound actions decoded from text messages",
		}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "decode_errors_total",
			Help:      "Inbound text messages that failed to decode",
		}),
		droppedMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "messages_dropped_total",
			Help:      "Inbound messages dropped without effect, by kind",
		}, []string{"kind"}),
		transportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "transport_errors_total",
			Help:      "Transport read/write failures, by direction",
		}, []string{"direction"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "transitions_total",
			Help:      "Reducer transitions, by whether the state changed",
		}, []string{"changed"}),
		reduceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "reduce_duration_seconds",
			Help:      "Reducer execution time",
			Buckets:   []float64{.00001, .0001, .001, .01, .1},
		}),
		snapshotsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "snapshots_published_total",
			Help:      "Rendered snapshots handed to the outbound queue",
		}),
		snapshotsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "snapshots_sent_total",
			Help:      "Snapshots written to the transport",
		}),
		snapshotBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "snapshot_bytes_total",
			Help:      "Encoded snapshot bytes written to the transport",
		}),
		deferredScheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "deferred_actions_scheduled_total",
			Help:      "Deferred actions scheduled by reducers",
		}),
	}
}

// ActionApplied implements actor.Observer.
func (m *Metrics) ActionApplied(_ protocol.Tag, changed bool, elapsed time.Duration) {
	m.transitions.WithLabelValues(strconv.FormatBool(changed)).Inc()
	m.reduceDuration.Observe(elapsed.Seconds())
}

// SnapshotPublished implements actor.Observer.
func (m *Metrics) SnapshotPublished() {
	m.snapshotsPublished.Inc()
}

// DeferredScheduled implements actor.Observer.
func (m *Metrics) DeferredScheduled(protocol.Tag) {
	m.deferredScheduled.Inc()
}

func (m *Metrics) connectionOpened() {
	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
}

func (m *Metrics) connectionClosed() {
	m.connectionsActive.Dec()
}

func (m *Metrics) connectionRejected(reason string) {
	m.rejectedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) actionReceived() {
	m.actionsReceived.Inc()
}

func (m *Metrics) decodeError() {
	m.decodeErrors.Inc()
}

func (m *Metrics) messageDropped(kind string) {
	m.droppedMessages.WithLabelValues(kind).Inc()
}

func (m *Metrics) transportError(direction string) {
	m.transportErrors.WithLabelValues(direction).Inc()
}

func (m *Metrics) snapshotSent(n int) {
	m.snapshotsSent.Inc()
	m.snapshotBytes.Add(float64(n))
}
