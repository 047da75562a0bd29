package tuner

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StatsSource supplies one period's worth of pre-aggregated observations.
// Snapshot is called once per period, immediately before the tuner runs.
type StatsSource interface {
	Snapshot() TunerContext
}

// Applier receives the new heap fractions whenever a tuning step is taken.
// The applier owns the actual memory reallocation; the tuner never touches
// the pools itself.
type Applier interface {
	Apply(blockCacheSize, memStoreSize float64)
}

// Manager drives a Tuner on a fixed interval. It is the single caller the
// tuner requires: snapshots, tuning and application all happen on one
// goroutine, so invocations never overlap.
type Manager struct {
	tuner   Tuner
	source  StatsSource
	applier Applier
	logger  *zap.Logger
}

// NewManager wires a tuner to its stats source and applier.
func NewManager(t Tuner, source StatsSource, applier Applier, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		tuner:   t,
		source:  source,
		applier: applier,
		logger:  logger,
	}
}

// Start runs the tuning loop until the context is canceled.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runOnce()
		}
	}
}

func (m *Manager) runOnce() {
	snapshot := m.source.Snapshot()
	result := m.tuner.Tune(snapshot)
	if !result.Applied {
		return
	}
	m.applier.Apply(result.BlockCacheSize, result.MemStoreSize)
	m.logger.Info("heap reallocation",
		zap.Float64("block_cache_size", result.BlockCacheSize),
		zap.Float64("memstore_size", result.MemStoreSize),
	)
}
