package farcaster

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes a Prometheus registry reporting supervisor-visible node
// state: how many children are alive, how many swaps are in flight, and
// what the offer book looks like.
type Metrics struct {
	registry *prometheus.Registry

	peerCount    prometheus.Gauge
	activeSwaps  prometheus.Gauge
	offerCount   prometheus.Gauge
	syncerCount  prometheus.Gauge
	swapsStarted prometheus.Counter
	swapsAborted prometheus.Counter
}

// NewMetrics builds and registers the gauge/counter set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		peerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swapd_connected_peers",
			Help: "Number of live peer connections.",
		}),
		activeSwaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swapd_active_swaps",
			Help: "Number of swaps not yet in a terminal state.",
		}),
		offerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swapd_open_offers",
			Help: "Number of offers in the local offer book.",
		}),
		syncerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swapd_running_syncers",
			Help: "Number of chain syncers currently running.",
		}),
		swapsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swapd_swaps_started_total",
			Help: "Total swaps created, either made or taken.",
		}),
		swapsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swapd_swaps_aborted_total",
			Help: "Total swaps that reached the Aborted state.",
		}),
	}
	reg.MustRegister(
		m.peerCount, m.activeSwaps, m.offerCount,
		m.syncerCount, m.swapsStarted, m.swapsAborted,
	)
	return m
}

// Handler serves the registry in the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) setPeerCount(n int)   { m.peerCount.Set(float64(n)) }
func (m *Metrics) setActiveSwaps(n int) { m.activeSwaps.Set(float64(n)) }
func (m *Metrics) setOfferCount(n int)  { m.offerCount.Set(float64(n)) }
func (m *Metrics) setSyncerCount(n int) { m.syncerCount.Set(float64(n)) }
func (m *Metrics) incSwapStarted()      { m.swapsStarted.Inc() }
func (m *Metrics) incSwapAborted()      { m.swapsAborted.Inc() }
