// Package metrics exposes demo counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sm2demo"

// Result labels.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

type Metrics struct {
	// Handshakes counts key-exchange steps by stage (init, confirm) and result.
	Handshakes *prometheus.CounterVec
	// CryptoTests counts channel round trips by result.
	CryptoTests *prometheus.CounterVec
	// Replays counts init requests refused for a reused ephemeral key.
	Replays  prometheus.Counter
	Sessions prometheus.Gauge

	registry *prometheus.Registry
}

// New registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		Handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keyswap",
			Name:      "steps_total",
			Help:      "Key exchange steps handled, by stage and result.",
		}, []string{"stage", "result"}),
		CryptoTests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "tests_total",
			Help:      "Encrypted channel tests handled, by result.",
		}, []string{"result"}),
		Replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keyswap",
			Name:      "replays_total",
			Help:      "Init requests refused because the ephemeral key was seen before.",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Live key exchange sessions.",
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.Handshakes, m.CryptoTests, m.Replays, m.Sessions)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
