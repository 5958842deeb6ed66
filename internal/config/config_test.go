package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Backend != BackendFile {
		t.Fatalf("default backend = %q", cfg.Backend)
	}
	if cfg.PageSize != 4096 || cfg.FileSize != 64<<20 {
		t.Fatalf("default geometry = %d/%d", cfg.PageSize, cfg.FileSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "pagelog.json")
	data := []byte(`{"backend":"pebble","pageSize":1024,"fileSize":8192,"cache":{"budgetBytes":65536,"nonBlocking":true},"retention":{"maxBytes":1048576}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendPebble || cfg.PageSize != 1024 || cfg.FileSize != 8192 {
		t.Fatalf("loaded = %+v", cfg)
	}
	if cfg.Cache.BudgetBytes != 65536 || !cfg.Cache.NonBlocking {
		t.Fatalf("cache = %+v", cfg.Cache)
	}
	if cfg.Cache.Generations != 2 {
		t.Fatalf("unset fields should keep defaults, generations = %d", cfg.Cache.Generations)
	}
	if cfg.Retention.MaxBytes != 1<<20 {
		t.Fatalf("retention = %+v", cfg.Retention)
	}
}

func TestLoadRejectsYAML(t *testing.T) {
	file := filepath.Join(t.TempDir(), "pagelog.yaml")
	if err := os.WriteFile(file, []byte("backend: file\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(file); err == nil {
		t.Fatalf("expected yaml to be rejected")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("PAGELOG_BACKEND", "pebble")
	t.Setenv("PAGELOG_PAGE_SIZE", "512")
	t.Setenv("PAGELOG_CACHE_SOFT", "true")
	t.Setenv("PAGELOG_RETENTION_MAX_BYTES", "4096")
	t.Setenv("PAGELOG_FILE_SIZE", "not-a-number")
	FromEnv(&cfg)
	if cfg.Backend != "pebble" {
		t.Fatalf("env override backend")
	}
	if cfg.PageSize != 512 {
		t.Fatalf("env override page size")
	}
	if !cfg.Cache.Soft {
		t.Fatalf("env override soft")
	}
	if cfg.Retention.MaxBytes != 4096 {
		t.Fatalf("env override retention")
	}
	if cfg.FileSize != 64<<20 {
		t.Fatalf("unparseable value should be ignored, got %d", cfg.FileSize)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"page size not power of two", func(c *Config) { c.PageSize = 1000 }, "power of two"},
		{"file size not multiple", func(c *Config) { c.FileSize = 4096*3 + 1 }, "multiple"},
		{"unknown backend", func(c *Config) { c.Backend = "s3" }, "backend"},
		{"unknown fsync", func(c *Config) { c.Fsync = "sometimes" }, "fsync"},
		{"percent over 100", func(c *Config) { c.Cache.BudgetPercent = 150 }, "budgetPercent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}
