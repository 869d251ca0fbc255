package bridge

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "bridge"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	ProofsSubmitted   metrics.Counter
	VotesCast         metrics.Counter
	ComplianceReviews metrics.Counter
	ProofsFinalized   metrics.Counter

	TransfersInitiated    metrics.Counter
	TransferConfirmations metrics.Counter
	TransfersCompleted    metrics.Counter

	RejectedOps metrics.Counter

	PendingProofs    metrics.Gauge
	PendingTransfers metrics.Gauge
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		ProofsSubmitted: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "proofs_submitted",
			Help:      "The total number of data proofs submitted.",
		}, labels).With(labelsAndValues...),
		VotesCast: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "votes_cast",
			Help:      "The total number of validator votes accepted.",
		}, labels).With(labelsAndValues...),
		ComplianceReviews: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "compliance_reviews",
			Help:      "The total number of compliance reviews recorded.",
		}, labels).With(labelsAndValues...),
		ProofsFinalized: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "proofs_finalized",
			Help:      "The total number of proofs that reached the terminal state.",
		}, labels).With(labelsAndValues...),
		TransfersInitiated: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "transfers_initiated",
			Help:      "The total number of cross-chain transfers initiated.",
		}, labels).With(labelsAndValues...),
		TransferConfirmations: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "transfer_confirmations",
			Help:      "The total number of relayer confirmations accepted.",
		}, labels).With(labelsAndValues...),
		TransfersCompleted: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "transfers_completed",
			Help:      "The total number of transfers that reached relayer quorum.",
		}, labels).With(labelsAndValues...),
		RejectedOps: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "rejected_ops",
			Help:      "The total number of mutating operations rejected with an error.",
		}, labels).With(labelsAndValues...),
		PendingProofs: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "pending_proofs",
			Help:      "The current size of the pending proof index.",
		}, labels).With(labelsAndValues...),
		PendingTransfers: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "pending_transfers",
			Help:      "The current size of the pending transfer index.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		ProofsSubmitted:       discard.NewCounter(),
		VotesCast:             discard.NewCounter(),
		ComplianceReviews:     discard.NewCounter(),
		ProofsFinalized:       discard.NewCounter(),
		TransfersInitiated:    discard.NewCounter(),
		TransferConfirmations: discard.NewCounter(),
		TransfersCompleted:    discard.NewCounter(),
		RejectedOps:           discard.NewCounter(),
		PendingProofs:         discard.NewGauge(),
		PendingTransfers:      discard.NewGauge(),
	}
}
