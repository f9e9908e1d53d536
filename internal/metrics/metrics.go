package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/notify-channel/internal/notification"
)

// Namespace prefixes every metric name.
const Namespace = "notify"

// Metrics holds the collectors. It satisfies session.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	connected         prometheus.Gauge
	connects          prometheus.Counter
	disconnects       prometheus.Counter
	dialFailures      prometheus.Counter
	reconnectAttempts prometheus.Counter
	subscribes        prometheus.Counter
	notifications     *prometheus.CounterVec
	handlerPanics     *prometheus.CounterVec

	archiveQueued   prometheus.Gauge
	archiveInserted prometheus.Counter
	archiveErrors   prometheus.Counter
	inboxUnread     prometheus.Gauge
}

// New creates and registers all collectors. Go runtime and process
// collectors are added when runtime is true.
func New(runtime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if runtime {
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	m := &Metrics{
		registry: reg,
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "channel",
			Name:      "connected",
			Help:      "1 while the realtime channel is connected and subscribed",
		}),
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "channel",
			Name:      "connects_total",
			Help:      "Established and subscribed connections",
		}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "channel",
			Name:      "disconnects_total",
			Help:      "Connections lost or closed",
		}),
		dialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "channel",
			Name:      "dial_failures_total",
			Help:      "Failed connection attempts",
		}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "channel",
			Name:      "reconnect_attempts_total",
			Help:      "Connection attempts made after a backoff delay",
		}),
		subscribes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "channel",
			Name:      "subscribes_total",
			Help:      "Subscribe requests sent",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "channel",
			Name:      "notifications_total",
			Help:      "Notifications dispatched, by kind",
		}, []string{"kind"}),
		handlerPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "channel",
			Name:      "handler_panics_total",
			Help:      "Notification handler panics recovered, by kind",
		}, []string{"kind"}),
		archiveQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "archive",
			Name:      "queued",
			Help:      "Notifications waiting to be archived",
		}),
		archiveInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "archive",
			Name:      "inserted_total",
			Help:      "Notifications written to the archive",
		}),
		archiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "archive",
			Name:      "errors_total",
			Help:      "Failed archive batch writes",
		}),
		inboxUnread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "inbox",
			Name:      "unread",
			Help:      "Unread notifications in the inbox",
		}),
	}

	reg.MustRegister(
		m.connected,
		m.connects,
		m.disconnects,
		m.dialFailures,
		m.reconnectAttempts,
		m.subscribes,
		m.notifications,
		m.handlerPanics,
		m.archiveQueued,
		m.archiveInserted,
		m.archiveErrors,
		m.inboxUnread,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *Metrics) Connected()        { m.connects.Inc() }
func (m *Metrics) Disconnected()     { m.disconnects.Inc() }
func (m *Metrics) DialFailed()       { m.dialFailures.Inc() }
func (m *Metrics) ReconnectAttempt() { m.reconnectAttempts.Inc() }
func (m *Metrics) Subscribed()       { m.subscribes.Inc() }

func (m *Metrics) NotificationDispatched(kind notification.Kind, _ int) {
	m.notifications.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) HandlerPanicked(kind notification.Kind) {
	m.handlerPanics.WithLabelValues(string(kind)).Inc()
}

// ArchiveQueued records the archive queue depth.
func (m *Metrics) ArchiveQueued(n int) { m.archiveQueued.Set(float64(n)) }

// ArchiveInserted counts rows written.
func (m *Metrics) ArchiveInserted(n int) { m.archiveInserted.Add(float64(n)) }

// ArchiveFailed counts a failed batch.
func (m *Metrics) ArchiveFailed() { m.archiveErrors.Inc() }

// InboxUnread records the inbox unread count.
func (m *Metrics) InboxUnread(n int) { m.inboxUnread.Set(float64(n)) }
