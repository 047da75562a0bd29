package main

import (
	"math/rand"

	"github.com/23skdu/heaptune/internal/tuner"
)

// workloadSimulator stands in for the surrounding storage engine: it
// fabricates per-period eviction, flush and miss counters that respond to the
// current heap split, and applies tuner output to its own fractions. It plays
// both external roles the tuner needs, the stats source and the applier.
type workloadSimulator struct {
	rng *rand.Rand

	blockCacheSize float64
	memStoreSize   float64

	// Fractions of heap the read and write working sets would like to have.
	readPressure  float64
	writePressure float64
}

func newWorkloadSimulator(blockCacheSize, memStoreSize float64, seed int64) *workloadSimulator {
	return &workloadSimulator{
		rng:            rand.New(rand.NewSource(seed)),
		blockCacheSize: blockCacheSize,
		memStoreSize:   memStoreSize,
		readPressure:   0.55,
		writePressure:  0.25,
	}
}

// Snapshot fabricates one period of observations. Pressure beyond the current
// allocation surfaces as evictions and misses on the read side and as flushes
// on the write side, scaled by a little noise so the rolling statistics have
// something to chew on.
func (s *workloadSimulator) Snapshot() tuner.TunerContext {
	// Drift the working sets so the tuner has a moving target.
	s.readPressure = driftFraction(s.rng, s.readPressure)
	s.writePressure = driftFraction(s.rng, s.writePressure)

	ctx := tuner.TunerContext{
		CurBlockCacheSize: s.blockCacheSize,
		CurMemStoreSize:   s.memStoreSize,
		CurBlockCacheUsed: min(s.readPressure, s.blockCacheSize) * s.jitter(),
		CurMemStoreUsed:   min(s.writePressure, s.memStoreSize) * s.jitter(),
	}

	if deficit := s.readPressure - s.blockCacheSize; deficit > 0 {
		ctx.EvictCount = uint64(deficit * 2000 * s.jitter())
		ctx.CacheMissCount = uint64(deficit * 5000 * s.jitter())
	}
	if deficit := s.writePressure - s.memStoreSize; deficit > 0 {
		ctx.UnblockedFlushCount = uint64(deficit * 1000 * s.jitter())
		if deficit > s.memStoreSize/2 {
			// Writers start stalling once the backlog gets severe.
			ctx.BlockedFlushCount = uint64(deficit * 100 * s.jitter())
		}
	}
	return ctx
}

// Apply adopts the new heap split emitted by the tuner.
func (s *workloadSimulator) Apply(blockCacheSize, memStoreSize float64) {
	s.blockCacheSize = blockCacheSize
	s.memStoreSize = memStoreSize
}

func (s *workloadSimulator) jitter() float64 {
	return 0.8 + 0.4*s.rng.Float64()
}

func driftFraction(rng *rand.Rand, v float64) float64 {
	v += (rng.Float64() - 0.5) * 0.02
	if v < 0.05 {
		v = 0.05
	}
	if v > 0.9 {
		v = 0.9
	}
	return v
}
