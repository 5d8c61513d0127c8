package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Token validation attempts, by surface and result.",
		},
		[]string{"service", "surface", "result"},
	)

	WSConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Currently open realtime connections.",
		},
		[]string{"service"},
	)

	WSEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_events_total",
			Help: "Inbound realtime events processed, by event type.",
		},
		[]string{"service", "event"},
	)

	MessagesStoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_stored_total",
			Help: "Messages persisted, by ingress path.",
		},
		[]string{"service", "path"},
	)

	MessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_marked_read_total",
			Help: "Messages flipped to read by receipt operations.",
		},
		[]string{"service"},
	)
)

func MustRegister(serviceName string) {
	labels := prometheus.Labels{"service": serviceName}

	HTTPRequestsTotal = HTTPRequestsTotal.MustCurryWith(labels)
	HTTPRequestDurationSeconds = HTTPRequestDurationSeconds.MustCurryWith(labels).(*prometheus.HistogramVec)
	AuthAttemptsTotal = AuthAttemptsTotal.MustCurryWith(labels)
	WSConnections = WSConnections.MustCurryWith(labels)
	WSEventsTotal = WSEventsTotal.MustCurryWith(labels)
	MessagesStoredTotal = MessagesStoredTotal.MustCurryWith(labels)
	MessagesReadTotal = MessagesReadTotal.MustCurryWith(labels)

	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		AuthAttemptsTotal,
		WSConnections,
		WSEventsTotal,
		MessagesStoredTotal,
		MessagesReadTotal,
	)
}
