package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Heap Memory Tuner Metrics
// =============================================================================

var (
	// TunerDecisionsTotal counts tuner decisions by step direction
	TunerDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heaptune_tuner_decisions_total",
			Help: "Total number of tuner decisions by step direction",
		},
		[]string{"direction"},
	)

	// TunerReversionsTotal counts decisions that reverted the previous step
	TunerReversionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heaptune_tuner_reversions_total",
		Help: "Total number of tuner decisions that reverted the previous step",
	})

	// TunerStepSize tracks the current tuning step size as a heap fraction
	TunerStepSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "heaptune_tuner_step_size",
		Help: "Current tuning step size as a fraction of total heap",
	})

	// TunerBlockCacheFraction tracks the most recently emitted block cache fraction
	TunerBlockCacheFraction = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "heaptune_block_cache_fraction",
		Help: "Block cache heap fraction from the last applied tuner decision",
	})

	// TunerMemStoreFraction tracks the most recently emitted memstore fraction
	TunerMemStoreFraction = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "heaptune_memstore_fraction",
		Help: "Memstore heap fraction from the last applied tuner decision",
	})

	// TunerWarmupRemaining tracks periods left before the tuner starts acting
	TunerWarmupRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "heaptune_tuner_warmup_periods_remaining",
		Help: "Number of warm-up periods remaining before tuning actions begin",
	})

	// RollingMean tracks the rolling mean of each observed counter series
	RollingMean = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "heaptune_rolling_mean",
			Help: "Rolling mean of observed per-period counters",
		},
		[]string{"series"}, // "cache_miss", "flush", "eviction"
	)

	// RollingDeviation tracks the rolling deviation of each observed counter series
	RollingDeviation = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "heaptune_rolling_deviation",
			Help: "Rolling sample standard deviation of observed per-period counters",
		},
		[]string{"series"},
	)
)
