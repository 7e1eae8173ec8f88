// Package observability exposes Prometheus counters for the intake and
// feed paths. Registration is lazy so tests exercising decoders never
// need a registry of their own.
package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cutlog",
			Subsystem: "events",
			Name:      "recorded_total",
			Help:      "Production events recorded, by kind.",
		},
		[]string{"kind"},
	)
	tallyMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cutlog",
			Subsystem: "tsl",
			Name:      "messages_total",
			Help:      "Tally messages decoded, by wire format.",
		},
		[]string{"format"},
	)
	framingResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cutlog",
			Subsystem: "tsl",
			Name:      "framing_resets_total",
			Help:      "Byte-stream resynchronizations after framing errors.",
		},
	)
	droppedMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cutlog",
			Subsystem: "tsl",
			Name:      "dropped_messages_total",
			Help:      "Well-framed messages discarded as undecodable.",
		},
	)
	feedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cutlog",
			Subsystem: "feed",
			Name:      "clients",
			Help:      "Connected websocket observers.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(eventsTotal, tallyMessages, framingResets, droppedMessages, feedClients)
	})
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordEvent(kind string) {
	RegisterMetrics()
	eventsTotal.WithLabelValues(kind).Inc()
}

func RecordTallyMessage(format string) {
	RegisterMetrics()
	tallyMessages.WithLabelValues(format).Inc()
}

func RecordFramingReset() {
	RegisterMetrics()
	framingResets.Inc()
}

func RecordDroppedMessage() {
	RegisterMetrics()
	droppedMessages.Inc()
}

func SetFeedClients(n int) {
	RegisterMetrics()
	feedClients.Set(float64(n))
}
