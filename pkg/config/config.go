package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"segdb/pkg/dberrors"
)

const (
	MemtableSkipMap = "skipmap"
	MemtableBTree   = "btree"

	// ModeMulti appends one segment per flush.
	ModeMulti = "multi"
	// ModeSingle keeps one table file and rewrites it on every flush.
	ModeSingle = "single"
)

// Config - корневая структура конфигурации движка
type Config struct {
	Logger LoggerConfig `yaml:"logger" validate:"required"`
	DB     `yaml:"db" validate:"required"`
}

type DB struct {
	Memtable    MemtableConfig    `yaml:"memtable" validate:"required"`
	Persistence PersistenceConfig `yaml:"persistence" validate:"required"`
}

type MemtableConfig struct {
	Kind string `yaml:"kind" validate:"oneof=skipmap btree"`
	// 0 disables automatic flushes; the buffer is then only persisted by
	// Flush, Compact and Close.
	FlushThresholdBytes int64 `yaml:"flush_threshold" validate:"min=0"`
	BTreeDegree         int   `yaml:"btree_degree" validate:"min=2"`
}

type PersistenceConfig struct {
	RootPath    string            `yaml:"path" validate:"required"`
	Mode        string            `yaml:"mode" validate:"oneof=multi single"`
	BloomFilter BloomFilterConfig `yaml:"bloom_filter"`
}

type BloomFilterConfig struct {
	// 0 disables per-segment bloom filters.
	FPRate float64 `yaml:"fp_rate" validate:"gte=0,lt=1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "INFO",
			JSON:  false,
		},
		DB: DB{
			Memtable: MemtableConfig{
				Kind:                MemtableSkipMap,
				FlushThresholdBytes: 0,
				BTreeDegree:         32,
			},
			Persistence: PersistenceConfig{
				RootPath: "./data",
				Mode:     ModeMulti,
				BloomFilter: BloomFilterConfig{
					FPRate: 0.01,
				},
			},
		},
	}
}

// Load reads a YAML config on top of Default. A missing file is not an
// error: the defaults are returned as is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks the fields that the engine depends on.
func (c Config) Validate() error {
	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logger.level", c.Logger.Level)
	}

	switch c.Memtable.Kind {
	case MemtableSkipMap:
	case MemtableBTree:
		if c.Memtable.BTreeDegree < 2 {
			return invalid("db.memtable.btree_degree", c.Memtable.BTreeDegree)
		}
	default:
		return invalid("db.memtable.kind", c.Memtable.Kind)
	}

	if c.Memtable.FlushThresholdBytes < 0 {
		return invalid("db.memtable.flush_threshold", c.Memtable.FlushThresholdBytes)
	}

	if c.Persistence.RootPath == "" {
		return invalid("db.persistence.path", c.Persistence.RootPath)
	}

	switch c.Persistence.Mode {
	case ModeMulti, ModeSingle:
	default:
		return invalid("db.persistence.mode", c.Persistence.Mode)
	}

	if fp := c.Persistence.BloomFilter.FPRate; fp < 0 || fp >= 1 {
		return invalid("db.persistence.bloom_filter.fp_rate", fp)
	}

	return nil
}

func invalid(field string, v any) error {
	return fmt.Errorf("%w: %s=%v", dberrors.ErrInvalidConfig, field, v)
}
