package main

import (
	"errors"
	"time"

	"github.com/23skdu/heaptune/internal/tuner"
)

// Config validation errors
var (
	ErrInvalidMetricsAddr     = errors.New("metrics_addr cannot be empty")
	ErrInvalidTunePeriod      = errors.New("tune_period must be positive")
	ErrInvalidLogFormat       = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel        = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidStepRange       = errors.New("step_min must be positive and not exceed step_max")
	ErrInvalidSufficientLevel = errors.New("sufficient_memory_level must be in (0, 1]")
	ErrInvalidLookupPeriods   = errors.New("lookup_periods cannot be negative")
	ErrInvalidBlockCacheRange = errors.New("block_cache_size_min must not exceed block_cache_size_max")
	ErrInvalidMemStoreRange   = errors.New("memstore_size_min must not exceed memstore_size_max")
)

// Config is loaded from HEAPTUNE_* environment variables.
type Config struct {
	MetricsAddr string        `envconfig:"METRICS_ADDR" default:"0.0.0.0:9090"`
	TunePeriod  time.Duration `envconfig:"TUNE_PERIOD" default:"5s"`
	LogFormat   string        `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`

	StepMax               float64 `envconfig:"STEP_MAX" default:"0.08"`
	StepMin               float64 `envconfig:"STEP_MIN" default:"0.005"`
	SufficientMemoryLevel float64 `envconfig:"SUFFICIENT_MEMORY_LEVEL" default:"0.5"`
	LookupPeriods         int     `envconfig:"LOOKUP_PERIODS" default:"60"`
	IgnoredPeriods        int     `envconfig:"IGNORED_PERIODS" default:"-1"` // -1 means lookup_periods

	// Base heap fractions; the min/max ranges fall back to the base size
	// when left at 0, which pins the fraction.
	BlockCacheSize    float64 `envconfig:"BLOCK_CACHE_SIZE" default:"0.4"`
	BlockCacheSizeMin float64 `envconfig:"BLOCK_CACHE_SIZE_MIN" default:"0"`
	BlockCacheSizeMax float64 `envconfig:"BLOCK_CACHE_SIZE_MAX" default:"0"`
	MemStoreSize      float64 `envconfig:"MEMSTORE_SIZE" default:"0.4"`
	MemStoreSizeMin   float64 `envconfig:"MEMSTORE_SIZE_MIN" default:"0"`
	MemStoreSizeMax   float64 `envconfig:"MEMSTORE_SIZE_MAX" default:"0"`
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.MetricsAddr == "" {
		return ErrInvalidMetricsAddr
	}
	if cfg.TunePeriod <= 0 {
		return ErrInvalidTunePeriod
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	if cfg.StepMin <= 0 || cfg.StepMin > cfg.StepMax {
		return ErrInvalidStepRange
	}
	if cfg.SufficientMemoryLevel <= 0 || cfg.SufficientMemoryLevel > 1 {
		return ErrInvalidSufficientLevel
	}
	if cfg.LookupPeriods < 0 {
		return ErrInvalidLookupPeriods
	}
	if cfg.BlockCacheSizeMin > 0 && cfg.BlockCacheSizeMax > 0 &&
		cfg.BlockCacheSizeMin > cfg.BlockCacheSizeMax {
		return ErrInvalidBlockCacheRange
	}
	if cfg.MemStoreSizeMin > 0 && cfg.MemStoreSizeMax > 0 &&
		cfg.MemStoreSizeMin > cfg.MemStoreSizeMax {
		return ErrInvalidMemStoreRange
	}
	return nil
}

// TunerConfig maps the process configuration onto the tuning parameters,
// deriving unset clamp bounds from the base heap fractions.
func (c *Config) TunerConfig() tuner.Config {
	blockCacheMin := c.BlockCacheSizeMin
	if blockCacheMin <= 0 {
		blockCacheMin = c.BlockCacheSize
	}
	blockCacheMax := c.BlockCacheSizeMax
	if blockCacheMax <= 0 {
		blockCacheMax = c.BlockCacheSize
	}
	memStoreMin := c.MemStoreSizeMin
	if memStoreMin <= 0 {
		memStoreMin = c.MemStoreSize
	}
	memStoreMax := c.MemStoreSizeMax
	if memStoreMax <= 0 {
		memStoreMax = c.MemStoreSize
	}

	return tuner.Config{
		MaximumStepSize:        c.StepMax,
		MinimumStepSize:        c.StepMin,
		SufficientMemoryLevel:  c.SufficientMemoryLevel,
		LookupPeriods:          c.LookupPeriods,
		IgnoredPeriods:         c.IgnoredPeriods,
		BlockCacheSizeMinRange: blockCacheMin,
		BlockCacheSizeMaxRange: blockCacheMax,
		MemStoreSizeMinRange:   memStoreMin,
		MemStoreSizeMaxRange:   memStoreMax,
	}
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		MetricsAddr:           "0.0.0.0:9090",
		TunePeriod:            5 * time.Second,
		LogFormat:             "json",
		LogLevel:              "info",
		StepMax:               tuner.DefaultMaximumStepSize,
		StepMin:               tuner.DefaultMinimumStepSize,
		SufficientMemoryLevel: tuner.DefaultSufficientMemoryLevel,
		LookupPeriods:         tuner.DefaultLookupPeriods,
		IgnoredPeriods:        -1,
		BlockCacheSize:        tuner.DefaultBlockCacheSize,
		MemStoreSize:          tuner.DefaultMemStoreSize,
	}
}
