// Package metrics defines the prometheus metrics reported by the node.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "powchain"

var (
	blocksAccepted    prometheus.Counter
	chainReplacements prometheus.Counter
	blocksRejected    prometheus.Counter
	txsAccepted       prometheus.Counter
	txsRejected       prometheus.Counter
	txsDropped        prometheus.Counter
	blocksMined       prometheus.Counter
	miningDuration    prometheus.Histogram
	chainHeight       prometheus.Gauge
	mempoolSize       prometheus.Gauge
)

var initOnce sync.Once

// Init registers the metrics with the default registry. It is safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		blocksAccepted = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "blocks_accepted_total",
			Help:      "Blocks appended to the chain as the next block.",
		})
		chainReplacements = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "replacements_total",
			Help:      "Times the chain was replaced by a longer peer chain.",
		})
		blocksRejected = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "blocks_rejected_total",
			Help:      "Incoming blocks that were stale or invalid.",
		})
		txsAccepted = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "txs_accepted_total",
			Help:      "Transactions admitted into the mempool.",
		})
		txsRejected = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "txs_rejected_total",
			Help:      "Transactions refused by the mempool.",
		})
		txsDropped = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "txs_dropped_total",
			Help:      "Pending transactions dropped after the ledger changed.",
		})
		blocksMined = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "miner",
			Name:      "blocks_mined_total",
			Help:      "Blocks solved by this node.",
		})
		miningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "miner",
			Name:      "duration_seconds",
			Help:      "Time spent in a mining operation.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		})
		chainHeight = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "height",
			Help:      "Number of blocks in the chain.",
		})
		mempoolSize = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "size",
			Help:      "Number of pending transactions.",
		})
	})
}

// =============================================================================

// BlockAccepted records a block appended to the chain.
func BlockAccepted(height uint64) {
	Init()
	blocksAccepted.Inc()
	chainHeight.Set(float64(height))
}

// ChainReplaced records the adoption of a peer chain.
func ChainReplaced(height uint64) {
	Init()
	chainReplacements.Inc()
	chainHeight.Set(float64(height))
}

// BlockRejected records an incoming block that was not used.
func BlockRejected() {
	Init()
	blocksRejected.Inc()
}

// TxAccepted records a transaction admitted into the mempool.
func TxAccepted() {
	Init()
	txsAccepted.Inc()
}

// TxRejected records a transaction refused by the mempool.
func TxRejected() {
	Init()
	txsRejected.Inc()
}

// TxsDropped records pending transactions removed by revalidation.
func TxsDropped(n int) {
	Init()
	txsDropped.Add(float64(n))
}

// MempoolSize records the number of pending transactions.
func MempoolSize(n int) {
	Init()
	mempoolSize.Set(float64(n))
}

// Mined records the outcome of a mining operation.
func Mined(solved bool, duration time.Duration) {
	Init()
	if solved {
		blocksMined.Inc()
	}
	miningDuration.Observe(duration.Seconds())
}
