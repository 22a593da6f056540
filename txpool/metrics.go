// Copyright 2024 The execore Authors
// This file is part of execore.

package txpool

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the pool's prometheus instruments, grounded on the way
// erigon-lib/metrics wraps prometheus.Counter/Gauge directly rather than
// going through a third-party metrics facade.
type Metrics struct {
	PendingCount prometheus.Gauge
	QueuedCount  prometheus.Gauge
	Added        prometheus.Counter
	Dropped      prometheus.Counter
	Replaced     prometheus.Counter
	Rejected     prometheus.Counter
}

// NewMetrics builds and registers a pool's instrument set against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with a process-wide
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PendingCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "execore",
			Subsystem: "txpool",
			Name:      "pending_count",
			Help:      "Number of transactions that are their sender's lowest queued nonce.",
		}),
		QueuedCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "execore",
			Subsystem: "txpool",
			Name:      "queued_count",
			Help:      "Number of transactions queued behind their sender's lowest-nonce transaction.",
		}),
		Added: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "execore",
			Subsystem: "txpool",
			Name:      "added_total",
			Help:      "Transactions accepted by Add.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "execore",
			Subsystem: "txpool",
			Name:      "dropped_total",
			Help:      "Transactions evicted after a failed execution attempt during block assembly.",
		}),
		Replaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "execore",
			Subsystem: "txpool",
			Name:      "replaced_total",
			Help:      "Same-nonce transactions replaced by a higher-tip resubmission.",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "execore",
			Subsystem: "txpool",
			Name:      "rejected_total",
			Help:      "Transactions refused by Add (bad nonce, insufficient funds, underpriced).",
		}),
	}
	reg.MustRegister(m.PendingCount, m.QueuedCount, m.Added, m.Dropped, m.Replaced, m.Rejected)
	return m
}
