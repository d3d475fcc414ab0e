package goframed

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes a server's counters as Prometheus metrics.
// Register it with a prometheus.Registerer and scrape as usual.
type Collector struct {
	server *Server

	clientsActive    *prometheus.Desc
	acceptedTotal    *prometheus.Desc
	rejectedTotal    *prometheus.Desc
	tlsFailures      *prometheus.Desc
	authTotal        *prometheus.Desc
	messagesReceived *prometheus.Desc
	messagesSent     *prometheus.Desc
	bytesReceived    *prometheus.Desc
	bytesSent        *prometheus.Desc
	disconnects      *prometheus.Desc
}

// NewCollector creates a Prometheus collector over the given server.
func NewCollector(server *Server) *Collector {
	return &Collector{
		server: server,
		clientsActive: prometheus.NewDesc(
			"goframed_clients_active",
			"Number of currently connected clients",
			nil, nil,
		),
		acceptedTotal: prometheus.NewDesc(
			"goframed_connections_accepted_total",
			"Total accepted connections",
			nil, nil,
		),
		rejectedTotal: prometheus.NewDesc(
			"goframed_connections_rejected_total",
			"Total rejected connections by reason",
			[]string{"reason"}, nil,
		),
		tlsFailures: prometheus.NewDesc(
			"goframed_tls_handshake_failures_total",
			"Total failed TLS handshakes",
			nil, nil,
		),
		authTotal: prometheus.NewDesc(
			"goframed_auth_attempts_total",
			"Total shared-secret authentication attempts by result",
			[]string{"result"}, nil,
		),
		messagesReceived: prometheus.NewDesc(
			"goframed_messages_received_total",
			"Total framed messages received",
			nil, nil,
		),
		messagesSent: prometheus.NewDesc(
			"goframed_messages_sent_total",
			"Total framed messages sent",
			nil, nil,
		),
		bytesReceived: prometheus.NewDesc(
			"goframed_bytes_received_total",
			"Total bytes received in framed messages",
			nil, nil,
		),
		bytesSent: prometheus.NewDesc(
			"goframed_bytes_sent_total",
			"Total bytes sent in framed messages",
			nil, nil,
		),
		disconnects: prometheus.NewDesc(
			"goframed_disconnects_total",
			"Total client disconnects",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.clientsActive
	ch <- c.acceptedTotal
	ch <- c.rejectedTotal
	ch <- c.tlsFailures
	ch <- c.authTotal
	ch <- c.messagesReceived
	ch <- c.messagesSent
	ch <- c.bytesReceived
	ch <- c.bytesSent
	ch <- c.disconnects
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.server.Stats()

	ch <- prometheus.MustNewConstMetric(c.clientsActive, prometheus.GaugeValue, float64(stats.ActiveClients))
	ch <- prometheus.MustNewConstMetric(c.acceptedTotal, prometheus.CounterValue, float64(stats.AcceptedTotal))
	ch <- prometheus.MustNewConstMetric(c.rejectedTotal, prometheus.CounterValue, float64(stats.RejectedIPTotal), "ip_not_permitted")
	ch <- prometheus.MustNewConstMetric(c.rejectedTotal, prometheus.CounterValue, float64(stats.RejectedRateTotal), "rate_limited")
	ch <- prometheus.MustNewConstMetric(c.tlsFailures, prometheus.CounterValue, float64(stats.TLSFailuresTotal))
	ch <- prometheus.MustNewConstMetric(c.authTotal, prometheus.CounterValue, float64(stats.AuthSuccessTotal), "success")
	ch <- prometheus.MustNewConstMetric(c.authTotal, prometheus.CounterValue, float64(stats.AuthFailureTotal), "failure")
	ch <- prometheus.MustNewConstMetric(c.messagesReceived, prometheus.CounterValue, float64(stats.MessagesReceivedTotal))
	ch <- prometheus.MustNewConstMetric(c.messagesSent, prometheus.CounterValue, float64(stats.MessagesSentTotal))
	ch <- prometheus.MustNewConstMetric(c.bytesReceived, prometheus.CounterValue, float64(stats.BytesReceivedTotal))
	ch <- prometheus.MustNewConstMetric(c.bytesSent, prometheus.CounterValue, float64(stats.BytesSentTotal))
	ch <- prometheus.MustNewConstMetric(c.disconnects, prometheus.CounterValue, float64(stats.DisconnectsTotal))
}
