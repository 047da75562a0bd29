package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, ValidateConfig(&cfg))
}

func TestValidateConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty metrics addr", func(c *Config) { c.MetricsAddr = "" }, ErrInvalidMetricsAddr},
		{"zero tune period", func(c *Config) { c.TunePeriod = 0 }, ErrInvalidTunePeriod},
		{"negative tune period", func(c *Config) { c.TunePeriod = -time.Second }, ErrInvalidTunePeriod},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, ErrInvalidLogFormat},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, ErrInvalidLogLevel},
		{"zero step min", func(c *Config) { c.StepMin = 0 }, ErrInvalidStepRange},
		{"inverted step range", func(c *Config) { c.StepMin = 0.1; c.StepMax = 0.05 }, ErrInvalidStepRange},
		{"zero sufficient level", func(c *Config) { c.SufficientMemoryLevel = 0 }, ErrInvalidSufficientLevel},
		{"sufficient level above one", func(c *Config) { c.SufficientMemoryLevel = 1.5 }, ErrInvalidSufficientLevel},
		{"negative lookup periods", func(c *Config) { c.LookupPeriods = -1 }, ErrInvalidLookupPeriods},
		{"inverted block cache range", func(c *Config) {
			c.BlockCacheSizeMin = 0.6
			c.BlockCacheSizeMax = 0.2
		}, ErrInvalidBlockCacheRange},
		{"inverted memstore range", func(c *Config) {
			c.MemStoreSizeMin = 0.6
			c.MemStoreSizeMax = 0.2
		}, ErrInvalidMemStoreRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, ValidateConfig(&cfg), tt.wantErr)
		})
	}
}

func TestTunerConfig_DerivesRangesFromBaseSizes(t *testing.T) {
	cfg := DefaultConfig()
	tc := cfg.TunerConfig()

	// Unset ranges degenerate to the base fractions
	assert.Equal(t, cfg.BlockCacheSize, tc.BlockCacheSizeMinRange)
	assert.Equal(t, cfg.BlockCacheSize, tc.BlockCacheSizeMaxRange)
	assert.Equal(t, cfg.MemStoreSize, tc.MemStoreSizeMinRange)
	assert.Equal(t, cfg.MemStoreSize, tc.MemStoreSizeMaxRange)
}

func TestTunerConfig_ExplicitRanges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockCacheSizeMin = 0.1
	cfg.BlockCacheSizeMax = 0.6
	cfg.MemStoreSizeMin = 0.05
	cfg.MemStoreSizeMax = 0.7
	require.NoError(t, ValidateConfig(&cfg))

	tc := cfg.TunerConfig()
	assert.Equal(t, 0.1, tc.BlockCacheSizeMinRange)
	assert.Equal(t, 0.6, tc.BlockCacheSizeMaxRange)
	assert.Equal(t, 0.05, tc.MemStoreSizeMinRange)
	assert.Equal(t, 0.7, tc.MemStoreSizeMaxRange)
	assert.Equal(t, cfg.StepMax, tc.MaximumStepSize)
	assert.Equal(t, cfg.StepMin, tc.MinimumStepSize)
}
