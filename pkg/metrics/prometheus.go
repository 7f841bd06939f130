package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	signalsIngested   *prometheus.CounterVec
	attestations      *prometheus.CounterVec
	consensusOutcomes *prometheus.CounterVec
	candleUpdates     *prometheus.CounterVec
	rebuildBuckets    *prometheus.CounterVec
	nodeTrust         *prometheus.GaugeVec
	errorsTotal       *prometheus.CounterVec
	latency           *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendforge_signals_ingested_total",
				Help: "Total number of oracle signals accepted by intake",
			},
			[]string{"source"},
		),
		attestations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendforge_attestations_total",
				Help: "Total number of validator attestations received",
			},
			[]string{"node"},
		),
		consensusOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendforge_consensus_outcomes_total",
				Help: "Consensus resolutions by outcome (approved/flagged/rejected)",
			},
			[]string{"outcome"},
		),
		candleUpdates: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendforge_candle_updates_total",
				Help: "Candle bucket writes by market and timeframe",
			},
			[]string{"market", "timeframe"},
		),
		rebuildBuckets: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendforge_rebuild_buckets_total",
				Help: "Buckets committed by rebuild jobs",
			},
			[]string{"market", "timeframe"},
		),
		nodeTrust: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trendforge_node_trust_score",
				Help: "Current trust score of a validator node",
			},
			[]string{"node"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendforge_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendforge_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordSignalIngested(sourceKey string) {
	r.signalsIngested.WithLabelValues(sourceKey).Inc()
}

func (r *Recorder) RecordAttestation(nodeID string) {
	r.attestations.WithLabelValues(nodeID).Inc()
}

func (r *Recorder) RecordConsensusOutcome(outcome string) {
	r.consensusOutcomes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordCandleUpdate(market, tf string) {
	r.candleUpdates.WithLabelValues(market, tf).Inc()
}

func (r *Recorder) RecordRebuildBucket(market, tf string) {
	r.rebuildBuckets.WithLabelValues(market, tf).Inc()
}

func (r *Recorder) RecordNodeTrust(nodeID string, trust float64) {
	r.nodeTrust.WithLabelValues(nodeID).Set(trust)
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
