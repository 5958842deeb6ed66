package config

import (
	"os"
	"strconv"
)

// FromEnv overlays PAGELOG_* environment variables onto cfg. Unparseable
// values are ignored.
func FromEnv(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	unsigned := func(name string, dst *uint64) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.ParseUint(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("PAGELOG_DATA_DIR", &cfg.DataDir)
	str("PAGELOG_BACKEND", &cfg.Backend)
	integer("PAGELOG_PAGE_SIZE", &cfg.PageSize)
	unsigned("PAGELOG_FILE_SIZE", &cfg.FileSize)
	str("PAGELOG_FSYNC", &cfg.Fsync)
	boolean("PAGELOG_MMAP", &cfg.Mmap)
	unsigned("PAGELOG_CACHE_BUDGET_BYTES", &cfg.Cache.BudgetBytes)
	integer("PAGELOG_CACHE_BUDGET_PERCENT", &cfg.Cache.BudgetPercent)
	boolean("PAGELOG_CACHE_NONBLOCKING", &cfg.Cache.NonBlocking)
	boolean("PAGELOG_CACHE_SOFT", &cfg.Cache.Soft)
	integer("PAGELOG_CACHE_GENERATIONS", &cfg.Cache.Generations)
	unsigned("PAGELOG_RETENTION_MAX_BYTES", &cfg.Retention.MaxBytes)
	integer("PAGELOG_RETENTION_THROTTLE_MS", &cfg.Retention.ThrottleMs)
	str("PAGELOG_ARCHIVE_DIR", &cfg.Archive.Dir)
	boolean("PAGELOG_DIGESTS", &cfg.Digests)
	str("PAGELOG_LOG_LEVEL", &cfg.Log.Level)
	str("PAGELOG_LOG_FORMAT", &cfg.Log.Format)
	str("PAGELOG_LOG_OUTPUT", &cfg.Log.Output)
	integer("PAGELOG_FOLLOW_INTERVAL_MS", &cfg.FollowIntervalMs)
}
