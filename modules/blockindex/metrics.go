package blockindex

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Index families, used as metric labels.
const (
	FamilyTxHash             = "tx_hash"
	FamilyAccount            = "account"
	FamilyAccountHeight      = "account_height"
	FamilyAccountHeightAsset = "account_height_asset"
)

type Metrics struct {
	Writes        *prometheus.CounterVec
	Blocks        prometheus.Counter
	Failures      prometheus.Counter
	Purges        prometheus.Counter
	IndexDuration prometheus.Histogram
	IndexedHeight prometheus.Gauge
}

// NewMetrics creates the block index metrics and registers them to reg if it isn't nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger_indexer",
			Subsystem: "blockindex",
			Name:      "writes_total",
		}, []string{"family"}),
		Blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger_indexer",
			Subsystem: "blockindex",
			Name:      "blocks_indexed_total",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger_indexer",
			Subsystem: "blockindex",
			Name:      "index_failures_total",
		}),
		Purges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger_indexer",
			Subsystem: "blockindex",
			Name:      "blocks_purged_total",
		}),
		IndexDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledger_indexer",
			Subsystem: "blockindex",
			Name:      "index_block_duration_seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),
		IndexedHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger_indexer",
			Subsystem: "blockindex",
			Name:      "indexed_height",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Collectors()...)
	}
	return m
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Writes, m.Blocks, m.Failures, m.Purges, m.IndexDuration, m.IndexedHeight}
}
