package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Backend names accepted in Config.Backend.
const (
	BackendFile   = "file"
	BackendPebble = "pebble"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir   string          `json:"dataDir"`
	Backend   string          `json:"backend"`
	PageSize  int             `json:"pageSize"`
	FileSize  uint64          `json:"fileSize"`
	Fsync     string          `json:"fsync"`
	Mmap      bool            `json:"mmap"`
	Cache     CacheConfig     `json:"cache"`
	Retention RetentionConfig `json:"retention"`
	Archive   ArchiveConfig   `json:"archive"`
	Digests   bool            `json:"digests"`
	Log       LogConfig       `json:"log"`
	// FollowIntervalMs is the catch-up poll interval of read-only opens.
	FollowIntervalMs int `json:"followIntervalMs"`
}

// CacheConfig sizes and selects the page store.
type CacheConfig struct {
	// BudgetBytes wins over BudgetPercent when both are set. Zero for both
	// means the default page count.
	BudgetBytes   uint64 `json:"budgetBytes"`
	BudgetPercent int    `json:"budgetPercent"`
	NonBlocking   bool   `json:"nonBlocking"`
	Soft          bool   `json:"soft"`
	Generations   int    `json:"generations"`
}

// RetentionConfig bounds the log's on-medium size.
type RetentionConfig struct {
	MaxBytes   uint64 `json:"maxBytes"`
	ThrottleMs int    `json:"throttleMs"`
}

// ArchiveConfig enables xz archiving of deleted blocks.
type ArchiveConfig struct {
	Dir string `json:"dir"`
}

// LogConfig mirrors pkg/log.Config. Output is "console", "null" or
// "file:<path>".
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Backend:  BackendFile,
		PageSize: 4096,
		FileSize: 64 << 20,
		Fsync:    "always",
		Cache: CacheConfig{
			BudgetPercent: 10,
			Generations:   2,
		},
		Digests:          true,
		Log:              LogConfig{Level: "info", Format: "text", Output: "console"},
		FollowIntervalMs: 200,
	}
}

// Load reads configuration from a JSON file. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return Config{}, errors.New("yaml config not supported; use JSON")
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the geometry and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.PageSize <= 0 || c.PageSize&(c.PageSize-1) != 0 {
		errs = append(errs, fmt.Errorf("pageSize %d is not a power of two", c.PageSize))
	}
	if c.PageSize > 0 && (c.FileSize == 0 || c.FileSize%uint64(c.PageSize) != 0) {
		errs = append(errs, fmt.Errorf("fileSize %d is not a positive multiple of pageSize %d", c.FileSize, c.PageSize))
	}
	switch c.Backend {
	case BackendFile, BackendPebble:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	switch c.Fsync {
	case "", "always", "interval", "never":
	default:
		errs = append(errs, fmt.Errorf("unknown fsync mode %q", c.Fsync))
	}
	if c.Cache.BudgetPercent < 0 || c.Cache.BudgetPercent > 100 {
		errs = append(errs, fmt.Errorf("cache.budgetPercent %d out of range", c.Cache.BudgetPercent))
	}
	if c.Cache.Generations < 0 {
		errs = append(errs, fmt.Errorf("cache.generations %d is negative", c.Cache.Generations))
	}
	return errors.Join(errs...)
}
