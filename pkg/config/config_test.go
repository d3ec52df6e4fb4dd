package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"segdb/pkg/dberrors"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Persistence.Mode != ModeMulti || cfg.Memtable.Kind != MemtableSkipMap {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segdb.yaml")
	data := []byte(`
logger:
  level: debug
  json: true
db:
  memtable:
    kind: btree
    flush_threshold: 4096
    btree_degree: 8
  persistence:
    path: /var/lib/segdb
    mode: single
    bloom_filter:
      fp_rate: 0.05
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logger.Level != "debug" || !cfg.Logger.JSON {
		t.Fatalf("logger not parsed: %+v", cfg.Logger)
	}
	if cfg.Memtable.Kind != MemtableBTree || cfg.Memtable.FlushThresholdBytes != 4096 || cfg.Memtable.BTreeDegree != 8 {
		t.Fatalf("memtable not parsed: %+v", cfg.Memtable)
	}
	if cfg.Persistence.RootPath != "/var/lib/segdb" || cfg.Persistence.Mode != ModeSingle {
		t.Fatalf("persistence not parsed: %+v", cfg.Persistence)
	}
	if cfg.Persistence.BloomFilter.FPRate != 0.05 {
		t.Fatalf("fp_rate = %v", cfg.Persistence.BloomFilter.FPRate)
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segdb.yaml")
	if err := os.WriteFile(path, []byte("db:\n  persistence:\n    path: /tmp/x\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Persistence.RootPath != "/tmp/x" {
		t.Fatalf("path = %q", cfg.Persistence.RootPath)
	}
	if cfg.Persistence.Mode != ModeMulti || cfg.Logger.Level != "INFO" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.Logger.Level = "trace" }},
		{"bad kind", func(c *Config) { c.Memtable.Kind = "hash" }},
		{"bad degree", func(c *Config) { c.Memtable.Kind = MemtableBTree; c.Memtable.BTreeDegree = 1 }},
		{"negative threshold", func(c *Config) { c.Memtable.FlushThresholdBytes = -1 }},
		{"empty path", func(c *Config) { c.Persistence.RootPath = "" }},
		{"bad mode", func(c *Config) { c.Persistence.Mode = "tiered" }},
		{"bad fp rate", func(c *Config) { c.Persistence.BloomFilter.FPRate = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, dberrors.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
