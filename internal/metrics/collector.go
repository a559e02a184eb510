package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mlesc/internal/bridge"
)

// Source is anything that can report bridge counters.
type Source interface {
	Stats() bridge.Snapshot
}

var (
	forwardedDesc = prometheus.NewDesc(
		"mlesc_bridge_forwarded_total",
		"Messages forwarded across the bridge.",
		[]string{"direction"}, nil,
	)
	suppressedDesc = prometheus.NewDesc(
		"mlesc_bridge_suppressed_total",
		"Messages dropped as duplicates or echoes.",
		nil, nil,
	)
	droppedDesc = prometheus.NewDesc(
		"mlesc_bridge_dropped_total",
		"Messages that could not be delivered to the other side.",
		nil, nil,
	)
	reconnectsDesc = prometheus.NewDesc(
		"mlesc_link_reconnects_total",
		"Connections re-established after the first.",
		[]string{"side"}, nil,
	)
	decodeFailuresDesc = prometheus.NewDesc(
		"mlesc_link_decode_failures_total",
		"Inbound frames dropped because they failed to decode or authenticate.",
		[]string{"side"}, nil,
	)
	stateDesc = prometheus.NewDesc(
		"mlesc_link_state",
		"Link state: 0 disconnected, 1 connecting, 2 active, 3 reconnecting.",
		[]string{"side"}, nil,
	)
)

// Collector reads a Source on every scrape.
type Collector struct {
	src Source
}

// NewCollector wraps src.
func NewCollector(src Source) *Collector { return &Collector{src: src} }

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- forwardedDesc
	ch <- suppressedDesc
	ch <- droppedDesc
	ch <- reconnectsDesc
	ch <- decodeFailuresDesc
	ch <- stateDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(forwardedDesc, prometheus.CounterValue, float64(s.ForwardedAB), s.NameA+"->"+s.NameB)
	ch <- prometheus.MustNewConstMetric(forwardedDesc, prometheus.CounterValue, float64(s.ForwardedBA), s.NameB+"->"+s.NameA)
	ch <- prometheus.MustNewConstMetric(suppressedDesc, prometheus.CounterValue, float64(s.Suppressed))
	ch <- prometheus.MustNewConstMetric(droppedDesc, prometheus.CounterValue, float64(s.Dropped))
	ch <- prometheus.MustNewConstMetric(reconnectsDesc, prometheus.CounterValue, float64(s.ReconnectsA), s.NameA)
	ch <- prometheus.MustNewConstMetric(reconnectsDesc, prometheus.CounterValue, float64(s.ReconnectsB), s.NameB)
	ch <- prometheus.MustNewConstMetric(decodeFailuresDesc, prometheus.CounterValue, float64(s.DecodeFailuresA), s.NameA)
	ch <- prometheus.MustNewConstMetric(decodeFailuresDesc, prometheus.CounterValue, float64(s.DecodeFailuresB), s.NameB)
	ch <- prometheus.MustNewConstMetric(stateDesc, prometheus.GaugeValue, float64(s.StateA), s.NameA)
	ch <- prometheus.MustNewConstMetric(stateDesc, prometheus.GaugeValue, float64(s.StateB), s.NameB)
}

// Registry returns a private registry holding a Collector for src.
func Registry(src Source) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(src))
	return reg
}

// Handler serves src's metrics in the Prometheus exposition format.
func Handler(src Source) http.Handler {
	reg := Registry(src)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
