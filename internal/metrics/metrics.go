// Package metrics registers the node's prometheus metrics: block-import
// duration, gas used, mempool size, and peer counts, exposed over
// /debug/metrics per spec §5's metrics note.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps a dedicated prometheus.Registry (never the global
// DefaultRegisterer) so metrics registration can't collide with anything
// else sharing the process, and so tests can construct an isolated one.
type Registry struct {
	reg *prometheus.Registry

	BlockImportSeconds prometheus.Histogram
	BlockGasUsed       prometheus.Histogram
	MempoolSize        prometheus.Gauge
	PeerCount          prometheus.Gauge
	RPCDuration        prometheus.Histogram
}

// New registers and returns the node's metric set.
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		BlockImportSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "execd",
			Subsystem: "chain",
			Name:      "block_import_seconds",
			Help:      "Wall-clock time spent executing and committing one block.",
			Buckets:   prometheus.DefBuckets,
		}),
		BlockGasUsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "execd",
			Subsystem: "chain",
			Name:      "block_gas_used",
			Help:      "Gas used by the most recently imported block.",
			Buckets:   prometheus.ExponentialBuckets(21000, 2, 16),
		}),
		MempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "execd",
			Subsystem: "mempool",
			Name:      "pending_transactions",
			Help:      "Number of transactions currently held in the mempool.",
		}),
		PeerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "execd",
			Subsystem: "p2p",
			Name:      "peer_count",
			Help:      "Number of currently connected peers.",
		}),
		RPCDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "execd",
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "Wall-clock time spent handling one JSON-RPC call.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.BlockImportSeconds, m.BlockGasUsed, m.MempoolSize, m.PeerCount, m.RPCDuration)
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return m
}

// Handler returns the /debug/metrics HTTP exposition handler for this
// registry.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
