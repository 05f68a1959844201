package reco

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the monitoring counters of the reconstruction. Dropped and
// skipped digis are reported here, never as errors.
type Metrics struct {
	UnitsProcessed     prometheus.Counter
	UnitsRejected      prometheus.Counter
	DigisIn            prometheus.Counter
	DigisDropped       prometheus.Counter
	MissingCalibration prometheus.Counter
	PairsRejected      prometheus.Counter
	InconsistentPairs  prometheus.Counter
	GeometryFailures   prometheus.Counter
	HitsProduced       prometheus.Counter
	HitsMerged         prometheus.Counter
	ClusterSize        prometheus.Histogram
	UnitDuration       prometheus.Histogram
}

// NewMetrics registers the metrics with registry, the default registerer
// when nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{Namespace: "tof", Name: name, Help: help})
	}
	return &Metrics{
		UnitsProcessed:     counter("units_processed_total", "Processing units reconstructed."),
		UnitsRejected:      counter("units_rejected_total", "Processing units rejected as oversized."),
		DigisIn:            counter("digis_total", "Raw digis received."),
		DigisDropped:       counter("digis_dropped_total", "Digis dropped by the dead time filter."),
		MissingCalibration: counter("digis_missing_calibration_total", "Digis without calibration entry."),
		PairsRejected:      counter("pairs_rejected_total", "Channel pairs outside the strip length."),
		InconsistentPairs:  counter("pairs_inconsistent_total", "Channel pairs with impossible properties."),
		GeometryFailures:   counter("geometry_failures_total", "Channels or clusters without geometry cell."),
		HitsProduced:       counter("hits_total", "Hits produced."),
		HitsMerged:         counter("hits_merged_total", "Hit pairs merged across RPCs."),
		ClusterSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tof",
			Name:      "cluster_size",
			Help:      "Number of strips per hit.",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		}),
		UnitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tof",
			Name:      "unit_duration_seconds",
			Help:      "Time spent reconstructing one unit.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
	}
}

func (m *Metrics) observe(result *UnitResult) {
	if m == nil {
		return
	}
	s := result.Stats
	m.DigisIn.Add(float64(s.Digis))
	if result.Rejected {
		m.UnitsRejected.Inc()
		return
	}
	m.UnitsProcessed.Inc()
	m.DigisDropped.Add(float64(s.DeadTimeDropped))
	m.MissingCalibration.Add(float64(s.MissingCalibration))
	m.PairsRejected.Add(float64(s.RejectedPairs))
	m.InconsistentPairs.Add(float64(s.InconsistentPairs))
	m.GeometryFailures.Add(float64(s.GeometryFailures))
	m.HitsProduced.Add(float64(s.Hits))
	m.HitsMerged.Add(float64(s.Merged))
	for _, h := range result.Hits {
		m.ClusterSize.Observe(float64(h.ClusterSize))
	}
}
