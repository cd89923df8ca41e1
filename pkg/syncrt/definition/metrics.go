package definition

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the counters surface the reducer reports through (§4.10); the
// executor reports no metrics. A nil *Metrics is valid everywhere it is accepted — every method
// is a nil-receiver no-op — the same way the teacher's Peer treats a nil
// types.Logger as acceptable rather than requiring a guard at every call
// site.
type Metrics struct {
	channelsEstablished  prometheus.Counter
	syncRequestsSent     prometheus.Counter
	syncRequestsRecv     prometheus.Counter
	bytesExported        prometheus.Counter
	bytesImported        prometheus.Counter
	echoSuppressed       prometheus.Counter
	ephemeralBroadcasts  prometheus.Counter
}

// NewMetrics registers the syncrt counters against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the global
// default registry across multiple Synchronizer instances in one process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		channelsEstablished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncrt", Name: "channels_established_total",
			Help: "Channels that completed the establish handshake.",
		}),
		syncRequestsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncrt", Name: "sync_requests_sent_total",
			Help: "sync-request messages emitted.",
		}),
		syncRequestsRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncrt", Name: "sync_requests_received_total",
			Help: "sync-request messages received.",
		}),
		bytesExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncrt", Name: "bytes_exported_total",
			Help: "Bytes produced by Doc.Export across all sends.",
		}),
		bytesImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncrt", Name: "bytes_imported_total",
			Help: "Bytes handed to Doc.Import across all receives.",
		}),
		echoSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncrt", Name: "echo_suppressed_total",
			Help: "Peers skipped on doc-imported fan-out because they were already at our version.",
		}),
		ephemeralBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncrt", Name: "ephemeral_broadcasts_total",
			Help: "Standalone ephemeral messages sent on heartbeat.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.channelsEstablished,
			m.syncRequestsSent,
			m.syncRequestsRecv,
			m.bytesExported,
			m.bytesImported,
			m.echoSuppressed,
			m.ephemeralBroadcasts,
		)
	}
	return m
}

func (m *Metrics) ChannelEstablished() {
	if m == nil {
		return
	}
	m.channelsEstablished.Inc()
}

func (m *Metrics) SyncRequestSent() {
	if m == nil {
		return
	}
	m.syncRequestsSent.Inc()
}

func (m *Metrics) SyncRequestReceived() {
	if m == nil {
		return
	}
	m.syncRequestsRecv.Inc()
}

func (m *Metrics) BytesExported(n int) {
	if m == nil {
		return
	}
	m.bytesExported.Add(float64(n))
}

func (m *Metrics) BytesImported(n int) {
	if m == nil {
		return
	}
	m.bytesImported.Add(float64(n))
}

func (m *Metrics) EchoSuppressed() {
	if m == nil {
		return
	}
	m.echoSuppressed.Inc()
}

func (m *Metrics) EphemeralBroadcast() {
	if m == nil {
		return
	}
	m.ephemeralBroadcasts.Inc()
}
