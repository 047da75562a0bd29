// Package tuner implements the heap memory tuner: a periodic feedback
// controller that re-divides a fixed heap budget between the block cache and
// the memstore of a storage engine.
//
// Each period the tuner looks at eviction, flush and cache miss counters. A
// component with no observed pressure, or using only a minor fraction of its
// allocation, is considered to have sufficient memory; if exactly one side is
// sufficient, memory shifts to the other. When both sides are under pressure
// the tuner falls back to statistics over the recent periods: it first checks
// whether the previous step helped and reverts it if not, then classifies the
// current miss and flush counts against the rolling mean and deviation to pick
// a direction, staying neutral when the evidence is inconclusive. The step
// size resets to its maximum whenever tuning restarts from a neutral period
// and halves on every direction change, converging on the steady state the
// way a binary search narrows an interval.
package tuner

import (
	"go.uber.org/zap"

	"github.com/23skdu/heaptune/internal/metrics"
	"github.com/23skdu/heaptune/internal/stats"
)

// Tuning parameter defaults.
const (
	// DefaultMaximumStepSize bounds how much heap can shift in one period (8%).
	DefaultMaximumStepSize = 0.08
	// DefaultMinimumStepSize keeps the step from decaying to nothing (0.5%).
	DefaultMinimumStepSize = 0.005
	// DefaultSufficientMemoryLevel is the usage fraction below which a
	// component is considered to have sufficient memory.
	DefaultSufficientMemoryLevel = 0.5
	// DefaultLookupPeriods is the rolling window capacity for statistics.
	DefaultLookupPeriods = 60
	// DefaultBlockCacheSize is the block cache heap fraction when no range
	// is configured.
	DefaultBlockCacheSize = 0.4
	// DefaultMemStoreSize is the memstore heap fraction when no range is
	// configured.
	DefaultMemStoreSize = 0.4
)

// StepDirection identifies which way a tuning step moves memory.
type StepDirection int

const (
	// StepNeutral means no memory is moved this period.
	StepNeutral StepDirection = iota
	// StepIncreaseBlockCacheSize grows the block cache at the memstore's expense.
	StepIncreaseBlockCacheSize
	// StepIncreaseMemStoreSize grows the memstore at the block cache's expense.
	StepIncreaseMemStoreSize
)

func (d StepDirection) String() string {
	switch d {
	case StepIncreaseBlockCacheSize:
		return "increase_block_cache_size"
	case StepIncreaseMemStoreSize:
		return "increase_memstore_size"
	default:
		return "neutral"
	}
}

// TunerContext carries one period's worth of pre-aggregated observations.
// Counters cover the just-elapsed period; sizes and usage are current values
// expressed as fractions of total heap.
type TunerContext struct {
	BlockedFlushCount   uint64
	UnblockedFlushCount uint64
	EvictCount          uint64
	CacheMissCount      uint64

	CurMemStoreUsed   float64
	CurMemStoreSize   float64
	CurBlockCacheUsed float64
	CurBlockCacheSize float64
}

// TunerResult is the outcome of one tuning period. When Applied is false the
// remaining fields are meaningless and the caller changes nothing.
type TunerResult struct {
	Applied        bool
	BlockCacheSize float64
	MemStoreSize   float64
}

// Tuner decides, once per period, how heap should be divided between the
// block cache and the memstore. Implementations own all state needed across
// periods; the caller must serialize invocations.
type Tuner interface {
	Tune(ctx TunerContext) TunerResult
}

// Config holds the tuning parameters. The zero value is normalized by
// NewDefaultTuner; use DefaultConfig as the starting point.
type Config struct {
	// MaximumStepSize bounds the per-period adjustment fraction.
	MaximumStepSize float64
	// MinimumStepSize floors the per-period adjustment fraction.
	MinimumStepSize float64
	// SufficientMemoryLevel is the usage/size ratio below which a component
	// is considered unpressured.
	SufficientMemoryLevel float64
	// LookupPeriods is the rolling window capacity; 0 accumulates statistics
	// from process start without eviction.
	LookupPeriods int
	// IgnoredPeriods is the number of warm-up periods during which the tuner
	// only collects statistics. Negative means "same as LookupPeriods".
	IgnoredPeriods int

	// Clamp bounds for the emitted heap fractions.
	BlockCacheSizeMinRange float64
	BlockCacheSizeMaxRange float64
	MemStoreSizeMinRange   float64
	MemStoreSizeMaxRange   float64
}

// DefaultConfig returns the default tuning parameters. The clamp ranges
// degenerate to the default sizes, which pins both fractions; deployments
// enable tuning by widening them.
func DefaultConfig() Config {
	return Config{
		MaximumStepSize:        DefaultMaximumStepSize,
		MinimumStepSize:        DefaultMinimumStepSize,
		SufficientMemoryLevel:  DefaultSufficientMemoryLevel,
		LookupPeriods:          DefaultLookupPeriods,
		IgnoredPeriods:         -1,
		BlockCacheSizeMinRange: DefaultBlockCacheSize,
		BlockCacheSizeMaxRange: DefaultBlockCacheSize,
		MemStoreSizeMinRange:   DefaultMemStoreSize,
		MemStoreSizeMaxRange:   DefaultMemStoreSize,
	}
}

// DefaultTuner is the statistical heap memory tuner. Not safe for concurrent
// use: the scheduling caller must guarantee at most one in-flight Tune call.
type DefaultTuner struct {
	cfg    Config
	logger *zap.Logger

	missStats  *stats.RollingStats
	flushStats *stats.RollingStats
	evictStats *stats.RollingStats

	step           float64
	prevDirection  StepDirection
	ignoredPeriods int
}

// NewDefaultTuner creates a tuner with the given parameters. Out-of-range
// values are normalized rather than rejected: non-positive step sizes and
// levels fall back to defaults, and inverted ranges are swapped.
func NewDefaultTuner(cfg Config, logger *zap.Logger) *DefaultTuner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaximumStepSize <= 0 {
		cfg.MaximumStepSize = DefaultMaximumStepSize
	}
	if cfg.MinimumStepSize <= 0 {
		cfg.MinimumStepSize = DefaultMinimumStepSize
	}
	if cfg.MinimumStepSize > cfg.MaximumStepSize {
		cfg.MinimumStepSize, cfg.MaximumStepSize = cfg.MaximumStepSize, cfg.MinimumStepSize
	}
	if cfg.SufficientMemoryLevel <= 0 {
		cfg.SufficientMemoryLevel = DefaultSufficientMemoryLevel
	}
	if cfg.LookupPeriods < 0 {
		cfg.LookupPeriods = 0
	}
	if cfg.IgnoredPeriods < 0 {
		cfg.IgnoredPeriods = cfg.LookupPeriods
	}
	if cfg.BlockCacheSizeMinRange > cfg.BlockCacheSizeMaxRange {
		cfg.BlockCacheSizeMinRange, cfg.BlockCacheSizeMaxRange =
			cfg.BlockCacheSizeMaxRange, cfg.BlockCacheSizeMinRange
	}
	if cfg.MemStoreSizeMinRange > cfg.MemStoreSizeMaxRange {
		cfg.MemStoreSizeMinRange, cfg.MemStoreSizeMaxRange =
			cfg.MemStoreSizeMaxRange, cfg.MemStoreSizeMinRange
	}

	return &DefaultTuner{
		cfg:           cfg,
		logger:        logger,
		missStats:     stats.NewRollingStats(cfg.LookupPeriods),
		flushStats:    stats.NewRollingStats(cfg.LookupPeriods),
		evictStats:    stats.NewRollingStats(cfg.LookupPeriods),
		step:          cfg.MaximumStepSize,
		prevDirection: StepNeutral,
	}
}

// Tune processes one period's observations and returns the new heap split,
// or a no-op result when no change is warranted.
func (t *DefaultTuner) Tune(ctx TunerContext) TunerResult {
	totalFlushCount := ctx.BlockedFlushCount + ctx.UnblockedFlushCount
	t.missStats.Insert(float64(ctx.CacheMissCount))
	t.flushStats.Insert(float64(totalFlushCount))
	t.evictStats.Insert(float64(ctx.EvictCount))
	t.publishRollingStats()

	if t.ignoredPeriods < t.cfg.IgnoredPeriods {
		// Cache is still warming up; collect statistics only.
		t.ignoredPeriods++
		metrics.TunerWarmupRemaining.Set(float64(t.cfg.IgnoredPeriods - t.ignoredPeriods))
		return TunerResult{}
	}

	// A component is sufficient if it saw no pressure at all, or is using
	// only a minor fraction of what it has been given.
	memstoreSufficient := totalFlushCount == 0 ||
		ctx.CurMemStoreUsed < ctx.CurMemStoreSize*t.cfg.SufficientMemoryLevel
	blockCacheSufficient := ctx.EvictCount == 0 ||
		ctx.CurBlockCacheUsed < ctx.CurBlockCacheSize*t.cfg.SufficientMemoryLevel

	var newDirection StepDirection
	var reason string
	switch {
	case memstoreSufficient && blockCacheSufficient:
		newDirection = StepNeutral
	case memstoreSufficient:
		newDirection = StepIncreaseBlockCacheSize
		reason = "memstore unpressured, shifting memory to block cache"
	case blockCacheSufficient:
		newDirection = StepIncreaseMemStoreSize
		reason = "block cache unpressured, shifting memory to memstore"
	default:
		newDirection, reason = t.directionFromStats(ctx, totalFlushCount)
	}
	metrics.TunerDecisionsTotal.WithLabelValues(newDirection.String()).Inc()

	// Step size adaptation. A neutral-to-active transition restarts tuning at
	// full aggressiveness; a direction change halves the step, binary-search
	// style, down to the configured floor.
	if t.prevDirection == StepNeutral && newDirection != StepNeutral {
		t.step = t.cfg.MaximumStepSize
	} else if t.prevDirection != newDirection {
		t.step /= 2
		if t.step < t.cfg.MinimumStepSize {
			t.step = t.cfg.MinimumStepSize
		}
	}
	metrics.TunerStepSize.Set(t.step)

	var newBlockCacheSize, newMemStoreSize float64
	switch newDirection {
	case StepIncreaseBlockCacheSize:
		newBlockCacheSize = ctx.CurBlockCacheSize + t.step
		newMemStoreSize = ctx.CurMemStoreSize - t.step
	case StepIncreaseMemStoreSize:
		newBlockCacheSize = ctx.CurBlockCacheSize - t.step
		newMemStoreSize = ctx.CurMemStoreSize + t.step
	default:
		t.prevDirection = StepNeutral
		return TunerResult{}
	}

	// The two fractions are clamped independently; their sum may drift from
	// the pre-adjustment sum when a bound is hit.
	newBlockCacheSize = clamp(newBlockCacheSize,
		t.cfg.BlockCacheSizeMinRange, t.cfg.BlockCacheSizeMaxRange)
	newMemStoreSize = clamp(newMemStoreSize,
		t.cfg.MemStoreSizeMinRange, t.cfg.MemStoreSizeMaxRange)

	t.prevDirection = newDirection
	metrics.TunerBlockCacheFraction.Set(newBlockCacheSize)
	metrics.TunerMemStoreFraction.Set(newMemStoreSize)
	t.logger.Debug("tuning step",
		zap.String("direction", newDirection.String()),
		zap.String("reason", reason),
		zap.Float64("step", t.step),
		zap.Float64("block_cache_size", newBlockCacheSize),
		zap.Float64("memstore_size", newMemStoreSize),
	)

	return TunerResult{
		Applied:        true,
		BlockCacheSize: newBlockCacheSize,
		MemStoreSize:   newMemStoreSize,
	}
}

// directionFromStats picks a direction when neither component is sufficient.
// It first checks whether the previous step should be reverted, then
// classifies the current counters against the rolling statistics.
func (t *DefaultTuner) directionFromStats(ctx TunerContext, totalFlushCount uint64) (StepDirection, string) {
	// Evictions rather than cache misses drive the reversion check: they are
	// the stronger indicator of a deficient cache.
	switch t.prevDirection {
	case StepIncreaseBlockCacheSize:
		if float64(ctx.EvictCount) > t.evictStats.Mean() ||
			float64(totalFlushCount) > t.flushStats.Mean()+t.flushStats.Deviation()/2 {
			metrics.TunerReversionsTotal.Inc()
			return StepIncreaseMemStoreSize,
				"reverting previous step: evictions did not improve or flushes rose significantly"
		}
	case StepIncreaseMemStoreSize:
		if float64(totalFlushCount) > t.flushStats.Mean() ||
			float64(ctx.EvictCount) > t.evictStats.Mean()+t.evictStats.Deviation()/2 {
			metrics.TunerReversionsTotal.Inc()
			return StepIncreaseBlockCacheSize,
				"reverting previous step: flushes did not improve or evictions rose significantly"
		}
	case StepNeutral:
		// No previous step to revert.
	}

	// mean +- deviation/2 is considered normal; below is low, above is high.
	lowMisses := float64(ctx.CacheMissCount) < t.missStats.Mean()-t.missStats.Deviation()/2
	highMisses := float64(ctx.CacheMissCount) > t.missStats.Mean()+t.missStats.Deviation()/2
	lowFlushes := float64(totalFlushCount) < t.flushStats.Mean()-t.flushStats.Deviation()/2
	highFlushes := float64(totalFlushCount) > t.flushStats.Mean()+t.flushStats.Deviation()/2

	switch {
	case lowMisses && lowFlushes:
		return StepNeutral, ""
	case highMisses && lowFlushes:
		return StepIncreaseBlockCacheSize, "cache misses trending high"
	case lowMisses && highFlushes:
		return StepIncreaseMemStoreSize, "flushes trending high"
	case ctx.BlockedFlushCount > 0 && t.prevDirection == StepNeutral:
		// Blocked flushes mean writers are stalling on a full memstore.
		return StepIncreaseMemStoreSize, "blocked flushes observed"
	}
	// Not enough evidence to act.
	return StepNeutral, ""
}

func (t *DefaultTuner) publishRollingStats() {
	metrics.RollingMean.WithLabelValues("cache_miss").Set(t.missStats.Mean())
	metrics.RollingMean.WithLabelValues("flush").Set(t.flushStats.Mean())
	metrics.RollingMean.WithLabelValues("eviction").Set(t.evictStats.Mean())
	metrics.RollingDeviation.WithLabelValues("cache_miss").Set(t.missStats.Deviation())
	metrics.RollingDeviation.WithLabelValues("flush").Set(t.flushStats.Deviation())
	metrics.RollingDeviation.WithLabelValues("eviction").Set(t.evictStats.Deviation())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
